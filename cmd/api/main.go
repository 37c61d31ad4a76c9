// Package main implements the Forge knowledge query API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/forgeai/forge-knowledge/engine/compile"
	"github.com/forgeai/forge-knowledge/engine/graph"
	"github.com/forgeai/forge-knowledge/engine/intent"
	"github.com/forgeai/forge-knowledge/engine/knowledge"
	"github.com/forgeai/forge-knowledge/engine/semantic"
	"github.com/forgeai/forge-knowledge/pkg/fn"
	"github.com/forgeai/forge-knowledge/pkg/llm"
	"github.com/forgeai/forge-knowledge/pkg/metrics"
	"github.com/forgeai/forge-knowledge/pkg/mid"
	"github.com/forgeai/forge-knowledge/pkg/natsutil"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	OllamaURL  string
	NATSURL    string
	CORSOrigin string
	MaxResults int
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "forge-capsules"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		NATSURL:    envOr("NATS_URL", ""),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		MaxResults: envIntOr("MAX_RESULTS", 100),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	store := graph.New(driver)

	// --- Connect to Qdrant ---
	vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	// --- Connect to Ollama ---
	oracle := llm.New(cfg.OllamaURL, llm.DefaultOptions())

	// --- Connect to NATS (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats unavailable, audit events disabled", "err", err)
		} else {
			defer nc.Drain()
		}
	}

	// --- Build the query service ---
	reg := metrics.New()
	extractor := intent.NewExtractor(oracle, nil, intent.DefaultOptions(), logger)
	compiler := compile.New(extractor, compile.DefaultOptions(), logger)
	enricher := &semanticEnricher{vectors: vectors, oracle: oracle}

	svcOpts := knowledge.DefaultOptions()
	svcOpts.MaxResults = cfg.MaxResults
	svc := knowledge.New(compiler, store, oracle, enricher, svcOpts, reg, logger)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/query", handleQuery(svc, nc, svcOpts.DefaultTrust, logger))
	mux.HandleFunc("GET /api/stats", handleStats(store, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.OTel("forge-knowledge"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("knowledge api starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleQuery(svc *knowledge.Service, nc *nats.Conn, defaultTrust int, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req knowledge.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		start := time.Now()
		result := svc.Query(r.Context(), req)

		if nc != nil {
			event := natsutil.QueryEvent{
				Question:   req.Question,
				UserTrust:  req.Trust(defaultTrust),
				Complexity: result.Complexity,
				RowCount:   result.TotalCount,
				Truncated:  result.Truncated,
				Confidence: result.Confidence,
				Elapsed:    time.Since(start).Seconds(),
				At:         time.Now().UTC(),
			}
			if err := natsutil.Publish(r.Context(), nc, natsutil.QuerySubject, event); err != nil {
				logger.Warn("audit publish failed", "err", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func handleStats(store *graph.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		nodes, err := store.NodeCounts(ctx)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		rels, err := store.RelationshipCounts(ctx)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		domains, err := store.TopDomains(ctx, 10)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"nodes":         nodes,
			"relationships": rels,
			"top_domains":   domains,
		})
	}
}

// --- Adapters ---

// semanticEnricher embeds the question and pulls nearby capsule
// summaries for the synthesis prompt.
type semanticEnricher struct {
	vectors *semantic.VectorStore
	oracle  *llm.Client
}

func (e *semanticEnricher) Related(ctx context.Context, question string, topK int) ([]string, error) {
	embedding, err := e.oracle.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, embedding, topK)
	if err != nil {
		return nil, err
	}
	return fn.Map(hits, func(h semantic.Hit) string {
		if h.Summary == "" {
			return h.Title
		}
		return h.Title + ": " + h.Summary
	}), nil
}
