// Package compile renders a structured query intent into parameterized
// read-only Cypher. Values reach the query exclusively through bound
// parameters, every non-admin query is trust-filtered at generation time,
// and traversal depth is capped regardless of what the intent asked for.
package compile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/forgeai/forge-knowledge/engine/intent"
)

// Complexity is an advisory cost tier for a compiled query. Callers may
// use it to pick execution timeouts; the compiler does not enforce it.
type Complexity int

const (
	Simple Complexity = iota
	Moderate
	Complex
	Expensive
)

func (c Complexity) String() string {
	switch c {
	case Simple:
		return "simple"
	case Moderate:
		return "moderate"
	case Complex:
		return "complex"
	case Expensive:
		return "expensive"
	default:
		return "unknown"
	}
}

// Query is the compiler's output: Cypher text plus its bound parameters.
// It is produced once and never mutated.
type Query struct {
	Cypher        string
	Params        map[string]any
	Explanation   string
	Complexity    Complexity
	TrustFiltered bool
	ReadOnly      bool
	Method        intent.Method
}

// Options configures compilation.
type Options struct {
	// AdminTrust is the sentinel trust level that skips trust filtering.
	AdminTrust int
	// MaxHops caps variable-length traversals.
	MaxHops int
	// ComplexHopThreshold separates Complex from Expensive traversals.
	ComplexHopThreshold int
	// TrustProperty is the node property holding the row trust level.
	TrustProperty string
}

// DefaultOptions returns the standard compilation settings.
func DefaultOptions() Options {
	return Options{
		AdminTrust:          100,
		MaxHops:             10,
		ComplexHopThreshold: 5,
		TrustProperty:       "trust_level",
	}
}

// trustParam is the contractual name of the bound trust ceiling.
const trustParam = "user_trust_level"

// Compiler turns questions into parameterized Cypher via intent extraction.
type Compiler struct {
	extractor *intent.Extractor
	opts      Options
	logger    *slog.Logger
}

// New creates a Compiler.
func New(extractor *intent.Extractor, opts Options, logger *slog.Logger) *Compiler {
	if opts.AdminTrust == 0 {
		opts.AdminTrust = DefaultOptions().AdminTrust
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultOptions().MaxHops
	}
	if opts.ComplexHopThreshold <= 0 {
		opts.ComplexHopThreshold = DefaultOptions().ComplexHopThreshold
	}
	if opts.TrustProperty == "" {
		opts.TrustProperty = DefaultOptions().TrustProperty
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{extractor: extractor, opts: opts, logger: logger}
}

// Compile extracts intent from the question and renders it. The result is
// always read-only; TrustFiltered is false only for the admin sentinel.
func (c *Compiler) Compile(ctx context.Context, question string, userTrust int) (Query, error) {
	qi := c.extractor.Extract(ctx, question)
	return c.CompileIntent(qi, userTrust)
}

// CompileIntent renders an already-extracted intent.
func (c *Compiler) CompileIntent(qi intent.QueryIntent, userTrust int) (Query, error) {
	if err := qi.Validate(); err != nil {
		return Query{}, fmt.Errorf("compile: %w", err)
	}

	cypher, params, err := c.generate(qi, userTrust)
	if err != nil {
		return Query{}, fmt.Errorf("compile: %w", err)
	}

	q := Query{
		Cypher:        cypher,
		Params:        params,
		Explanation:   c.explain(qi),
		Complexity:    c.estimate(qi),
		TrustFiltered: userTrust != c.opts.AdminTrust,
		ReadOnly:      true,
		Method:        qi.Method,
	}
	c.logger.Debug("compiled query",
		"complexity", q.Complexity.String(),
		"trust_filtered", q.TrustFiltered,
		"method", string(q.Method),
	)
	return q, nil
}

// generate renders MATCH, WHERE, RETURN, ORDER BY, and LIMIT clauses.
func (c *Compiler) generate(qi intent.QueryIntent, userTrust int) (string, map[string]any, error) {
	binder := NewParamBinder()

	patterns, err := c.matchPatterns(qi, binder)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("MATCH ")
	b.WriteString(strings.Join(patterns, ", "))

	conditions := make([]string, 0, len(qi.Constraints)+len(qi.Entities))
	for _, con := range qi.Constraints {
		cond, err := renderConstraint(con, binder)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, cond)
	}

	// Mandatory trust filter: every declared alias is restricted to rows
	// at or below the caller's trust level unless the caller is admin.
	if userTrust != c.opts.AdminTrust {
		ph := binder.BindNamed(trustParam, userTrust)
		for _, alias := range qi.Aliases() {
			conditions = append(conditions,
				fmt.Sprintf("%s.%s <= %s", alias, c.opts.TrustProperty, ph))
		}
	}

	if len(conditions) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}

	ret, err := c.returnClause(qi)
	if err != nil {
		return "", nil, err
	}
	b.WriteString("\nRETURN ")
	b.WriteString(ret)

	if len(qi.OrderBy) > 0 {
		parts := make([]string, len(qi.OrderBy))
		for i, o := range qi.OrderBy {
			if !fieldOK(o.Field) {
				return "", nil, fmt.Errorf("invalid order-by field %q", o.Field)
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts[i] = o.Field + " " + dir
		}
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	limit := qi.Limit
	if limit <= 0 {
		limit = intent.DefaultOptions().DefaultLimit
	}
	b.WriteString("\nLIMIT ")
	b.WriteString(binder.BindNamed("limit", limit))

	return b.String(), binder.Params(), nil
}

// matchPatterns renders path patterns first, then standalone entities not
// already covered by a path endpoint. Property values bind through the
// binder; an alias's properties render only at its first appearance.
func (c *Compiler) matchPatterns(qi intent.QueryIntent, binder *ParamBinder) ([]string, error) {
	var patterns []string
	rendered := make(map[string]bool)

	node := func(e intent.EntityRef) (string, error) {
		if e.Alias != "" && !identifierOK(e.Alias) {
			return "", fmt.Errorf("invalid alias %q", e.Alias)
		}
		if rendered[e.Alias] {
			return "(" + e.Alias + ")", nil
		}
		rendered[e.Alias] = true
		var b strings.Builder
		b.WriteByte('(')
		b.WriteString(e.Alias)
		if e.Label != "" {
			if !identifierOK(e.Label) {
				return "", fmt.Errorf("invalid label %q", e.Label)
			}
			b.WriteByte(':')
			b.WriteString(e.Label)
		}
		if len(e.Properties) > 0 {
			pairs := make([]string, 0, len(e.Properties))
			for _, k := range sortedKeys(e.Properties) {
				if !identifierOK(k) {
					return "", fmt.Errorf("invalid property name %q", k)
				}
				pairs = append(pairs, k+": "+binder.Bind(e.Properties[k]))
			}
			b.WriteString(" {")
			b.WriteString(strings.Join(pairs, ", "))
			b.WriteByte('}')
		}
		b.WriteByte(')')
		return b.String(), nil
	}

	for _, p := range qi.Paths {
		src, err := node(p.Source)
		if err != nil {
			return nil, err
		}
		tgt, err := node(p.Target)
		if err != nil {
			return nil, err
		}
		rel, err := c.relPattern(p.Rel)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, src+rel+tgt)
	}

	for _, e := range qi.Entities {
		if rendered[e.Alias] {
			continue
		}
		pat, err := node(e)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
	}

	return patterns, nil
}

// relPattern renders one relationship, clamping hop bounds to the ceiling.
func (c *Compiler) relPattern(r intent.RelationshipRef) (string, error) {
	if !identifierOK(r.Type) {
		return "", fmt.Errorf("invalid relationship type %q", r.Type)
	}

	minHops, maxHops := r.MinHops, r.MaxHops
	if minHops < 0 {
		minHops = 0
	}
	if maxHops > c.opts.MaxHops {
		maxHops = c.opts.MaxHops
	}
	if maxHops < minHops {
		maxHops = minHops
	}

	inner := ":" + r.Type
	if minHops != 1 || maxHops != 1 {
		inner += fmt.Sprintf("*%d..%d", minHops, maxHops)
	}

	switch r.Direction {
	case intent.DirOut:
		return "-[" + inner + "]->", nil
	case intent.DirIn:
		return "<-[" + inner + "]-", nil
	default:
		return "-[" + inner + "]-", nil
	}
}

func renderConstraint(con intent.Constraint, binder *ParamBinder) (string, error) {
	if !fieldOK(con.Field) {
		return "", fmt.Errorf("invalid constraint field %q", con.Field)
	}
	return con.Field + " " + con.Op.Cypher() + " " + binder.Bind(con.Value), nil
}

// returnClause renders aggregations when present, otherwise the requested
// return fields, otherwise every declared alias. Every identifier spliced
// here comes from extraction output and is vetted like constraint fields;
// anything looser could smuggle a second query shape past the trust filter.
func (c *Compiler) returnClause(qi intent.QueryIntent) (string, error) {
	if len(qi.Aggregations) > 0 {
		parts := make([]string, len(qi.Aggregations))
		for i, a := range qi.Aggregations {
			fname := strings.ToLower(string(a.Func))
			if !identifierOK(fname) {
				return "", fmt.Errorf("invalid aggregation function %q", a.Func)
			}
			field := a.Field
			if field == "" {
				field = "*"
			}
			if field != "*" && !fieldOK(field) {
				return "", fmt.Errorf("invalid aggregation field %q", a.Field)
			}
			if !identifierOK(a.Alias) {
				return "", fmt.Errorf("invalid aggregation alias %q", a.Alias)
			}
			parts[i] = fmt.Sprintf("%s(%s) AS %s", fname, field, a.Alias)
		}
		return strings.Join(parts, ", "), nil
	}
	if qi.IsCount {
		alias := "c"
		if aliases := qi.Aliases(); len(aliases) > 0 {
			alias = aliases[0]
		}
		return fmt.Sprintf("count(%s) AS total", alias), nil
	}
	if len(qi.ReturnFields) > 0 {
		for _, f := range qi.ReturnFields {
			if !fieldOK(f) {
				return "", fmt.Errorf("invalid return field %q", f)
			}
		}
		return strings.Join(qi.ReturnFields, ", "), nil
	}
	return strings.Join(qi.Aliases(), ", "), nil
}

// estimate applies the complexity heuristic: aggregate-only intents are
// cheap, wide entity sets are moderate, traversals are complex, and deep
// traversals are expensive.
func (c *Compiler) estimate(qi intent.QueryIntent) Complexity {
	maxHops := 0
	for _, p := range qi.Paths {
		if p.Rel.MaxHops > maxHops {
			maxHops = p.Rel.MaxHops
		}
	}
	switch {
	case len(qi.Paths) == 0 && (qi.IsCount || qi.IsAggregation):
		return Simple
	case len(qi.Paths) == 0 && len(qi.Entities) >= 3:
		return Moderate
	case len(qi.Paths) == 0:
		return Simple
	case maxHops > c.opts.ComplexHopThreshold:
		return Expensive
	default:
		return Complex
	}
}

// explain produces a one-sentence description of the query shape.
func (c *Compiler) explain(qi intent.QueryIntent) string {
	label := ""
	if len(qi.Entities) > 0 {
		label = qi.Entities[0].Label
	} else if len(qi.Paths) > 0 {
		label = qi.Paths[0].Source.Label
	}

	var b strings.Builder
	if qi.IsCount {
		b.WriteString("Count " + label + " nodes")
	} else if qi.IsAggregation {
		b.WriteString("Aggregate over " + label + " nodes")
	} else {
		b.WriteString("Find " + label + " nodes")
	}
	if len(qi.Constraints) > 0 {
		fmt.Fprintf(&b, " matching %d condition(s)", len(qi.Constraints))
	}
	for _, p := range qi.Paths {
		maxHops := p.Rel.MaxHops
		if maxHops > c.opts.MaxHops {
			maxHops = c.opts.MaxHops
		}
		fmt.Fprintf(&b, ", traversing %s up to %d hop(s)", p.Rel.Type, maxHops)
	}
	return b.String()
}

// identifierOK reports whether s is safe to splice into query text as a
// label, relationship type, or property name.
func identifierOK(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return true
}

// fieldOK allows "alias" or "alias.property" references.
func fieldOK(s string) bool {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return identifierOK(s[:i]) && identifierOK(s[i+1:])
	}
	return identifierOK(s)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
