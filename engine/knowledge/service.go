// Package knowledge is the user-facing query orchestrator. It compiles a
// natural-language question into parameterized Cypher, validates it
// through the security guard, executes it against the graph store,
// truncates results, and optionally synthesizes a natural-language
// answer. Query never returns an error: every failure becomes a degraded
// QueryResult with zero rows, an explanatory answer, and zero confidence.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgeai/forge-knowledge/engine/compile"
	"github.com/forgeai/forge-knowledge/engine/guard"
	"github.com/forgeai/forge-knowledge/engine/intent"
	"github.com/forgeai/forge-knowledge/pkg/fn"
	"github.com/forgeai/forge-knowledge/pkg/metrics"
)

// QueryCompiler turns a question into parameterized Cypher.
type QueryCompiler interface {
	Compile(ctx context.Context, question string, userTrust int) (compile.Query, error)
}

// Executor runs a read query against the graph store. It must execute
// exactly the given string with exactly the given parameters; the guard's
// guarantees depend on no further rewriting.
type Executor interface {
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Completer is the text-completion backend used for answer synthesis.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Enricher optionally supplies semantically related snippets for the
// synthesis prompt. Failures are logged and skipped.
type Enricher interface {
	Related(ctx context.Context, question string, topK int) ([]string, error)
}

// Options configures the service.
type Options struct {
	// DefaultTrust is applied when a request carries no trust level.
	DefaultTrust int
	// AdminTrust is the sentinel skipping trust filtering.
	AdminTrust int
	// MaxResults caps returned rows when the request does not set one.
	MaxResults int
	// SummaryRows bounds how many rows feed the synthesis prompt.
	SummaryRows int
	// OracleTimeout bounds each synthesis call.
	OracleTimeout time.Duration
	// StoreTimeout bounds query execution.
	StoreTimeout time.Duration
}

// DefaultOptions returns the standard service settings.
func DefaultOptions() Options {
	return Options{
		DefaultTrust:  50,
		AdminTrust:    100,
		MaxResults:    100,
		SummaryRows:   10,
		OracleTimeout: 30 * time.Second,
		StoreTimeout:  15 * time.Second,
	}
}

// Request is one knowledge query. UserTrust is nil when the caller did not
// specify one; an explicit zero is a real minimum-trust caller and is never
// widened to the default.
type Request struct {
	Question   string `json:"question"`
	UserTrust  *int   `json:"user_trust"`
	Synthesize bool   `json:"synthesize_answer"`
	MaxResults int    `json:"max_results"`
}

// Trust returns the requested trust level, or fallback when unset.
func (r Request) Trust(fallback int) int {
	if r.UserTrust == nil {
		return fallback
	}
	return *r.UserTrust
}

// Timings are per-stage elapsed durations.
type Timings struct {
	Compile   time.Duration `json:"compile"`
	Execute   time.Duration `json:"execute"`
	Synthesis time.Duration `json:"synthesis"`
}

// QueryResult is the service's only output. A request that failed at any
// stage still produces one, with failure described in Answer.
type QueryResult struct {
	Rows        []map[string]any `json:"rows"`
	TotalCount  int              `json:"total_count"`
	Truncated   bool             `json:"truncated"`
	Answer      string           `json:"answer,omitempty"`
	Confidence  float64          `json:"confidence"`
	Explanation string           `json:"explanation,omitempty"`
	Complexity  string           `json:"complexity,omitempty"`
	Timings     Timings          `json:"timings"`
}

// Service ties compilation, validation, execution, and synthesis together.
type Service struct {
	compiler QueryCompiler
	store    Executor
	oracle   Completer
	enricher Enricher
	opts     Options
	logger   *slog.Logger

	queries     *metrics.Counter
	rejections  *metrics.Counter
	failures    *metrics.Counter
	fallbacks   *metrics.Counter
	compileHist *metrics.Histogram
	executeHist *metrics.Histogram
	synthHist   *metrics.Histogram
}

// New creates a Service. The enricher may be nil; the oracle may be nil
// if callers never request synthesis.
func New(compiler QueryCompiler, store Executor, oracle Completer, enricher Enricher, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	def := DefaultOptions()
	if opts.DefaultTrust == 0 {
		opts.DefaultTrust = def.DefaultTrust
	}
	if opts.AdminTrust == 0 {
		opts.AdminTrust = def.AdminTrust
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.SummaryRows <= 0 {
		opts.SummaryRows = def.SummaryRows
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = def.OracleTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		compiler: compiler,
		store:    store,
		oracle:   oracle,
		enricher: enricher,
		opts:     opts,
		logger:   logger,

		queries:     reg.Counter("knowledge_queries_total", "Knowledge queries served"),
		rejections:  reg.Counter("knowledge_rejections_total", "Queries rejected by the guard"),
		failures:    reg.Counter("knowledge_failures_total", "Queries failed at execution"),
		fallbacks:   reg.Counter("knowledge_fallbacks_total", "Queries compiled via the deterministic fallback"),
		compileHist: reg.Histogram("knowledge_compile_seconds", "Compilation latency", nil),
		executeHist: reg.Histogram("knowledge_execute_seconds", "Store execution latency", nil),
		synthHist:   reg.Histogram("knowledge_synthesis_seconds", "Answer synthesis latency", nil),
	}
}

// executed carries a compiled query and its rows between stages.
type executed struct {
	query compile.Query
	rows  []map[string]any
}

// Query answers a question. It always returns a QueryResult; failures at
// any stage short-circuit to a degraded result instead of propagating.
func (s *Service) Query(ctx context.Context, req Request) QueryResult {
	s.queries.Inc()
	trust := req.Trust(s.opts.DefaultTrust)
	if req.MaxResults <= 0 {
		req.MaxResults = s.opts.MaxResults
	}

	var t Timings

	// Stage 1: compile.
	compileStart := time.Now()
	compiled := s.compileStage(trust)(ctx, req.Question)
	t.Compile = time.Since(compileStart)
	s.compileHist.Since(compileStart)
	if compiled.IsErr() {
		_, err := compiled.Unwrap()
		s.logger.Warn("knowledge: compilation failed", "err", err)
		return failedResult(fmt.Sprintf("Could not understand the question: %v.", err), t)
	}
	query, _ := compiled.Unwrap()
	if query.Method == intent.MethodFallback {
		s.fallbacks.Inc()
	}

	// Stage 2: validate. A compiler bug emitting an unsafe query must
	// never reach the store.
	validated := s.validateStage()(ctx, query)
	if validated.IsErr() {
		s.rejections.Inc()
		_, err := validated.Unwrap()
		s.logger.Warn("knowledge: query rejected", "err", err)
		return failedResult("The generated query was rejected for safety reasons and was not executed.", t)
	}

	// Stage 3: execute.
	executeStart := time.Now()
	ran := s.executeStage()(ctx, query)
	t.Execute = time.Since(executeStart)
	s.executeHist.Since(executeStart)
	if ran.IsErr() {
		s.failures.Inc()
		_, err := ran.Unwrap()
		s.logger.Error("knowledge: execution failed", "err", err)
		return failedResult("Query execution failed; the knowledge store may be unavailable.", t)
	}
	ex, _ := ran.Unwrap()

	// Stage 4: truncate and score.
	result := QueryResult{
		Rows:        ex.rows,
		TotalCount:  len(ex.rows),
		Explanation: ex.query.Explanation,
		Complexity:  ex.query.Complexity.String(),
	}
	if len(ex.rows) > req.MaxResults {
		result.Rows = ex.rows[:req.MaxResults]
		result.Truncated = true
	}
	if result.TotalCount > 0 {
		result.Confidence = 0.9
	} else {
		result.Confidence = 0.5
	}

	// Stage 5: synthesize, only when there is something to talk about.
	if req.Synthesize && result.TotalCount > 0 {
		synthStart := time.Now()
		result.Answer = s.synthesize(ctx, req.Question, result)
		t.Synthesis = time.Since(synthStart)
		s.synthHist.Since(synthStart)
	}

	result.Timings = t
	return result
}

func (s *Service) compileStage(userTrust int) fn.Stage[string, compile.Query] {
	return fn.TracedStage("knowledge.compile", func(ctx context.Context, question string) fn.Result[compile.Query] {
		return fn.FromPair(s.compiler.Compile(ctx, question, userTrust))
	})
}

func (s *Service) validateStage() fn.Stage[compile.Query, compile.Query] {
	return fn.TracedStage("knowledge.validate", func(_ context.Context, q compile.Query) fn.Result[compile.Query] {
		if err := guard.Validate(q.Cypher); err != nil {
			return fn.Err[compile.Query](err)
		}
		if err := guard.ValidateParameters(q.Params); err != nil {
			return fn.Err[compile.Query](err)
		}
		return fn.Ok(q)
	})
}

func (s *Service) executeStage() fn.Stage[compile.Query, executed] {
	return fn.TracedStage("knowledge.execute", func(ctx context.Context, q compile.Query) fn.Result[executed] {
		ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
		defer cancel()
		rows, err := s.store.ExecuteRead(ctx, q.Cypher, q.Params)
		if err != nil {
			return fn.Err[executed](err)
		}
		return fn.Ok(executed{query: q, rows: rows})
	})
}

func failedResult(answer string, t Timings) QueryResult {
	return QueryResult{
		Rows:       []map[string]any{},
		Answer:     answer,
		Confidence: 0.0,
		Timings:    t,
	}
}
