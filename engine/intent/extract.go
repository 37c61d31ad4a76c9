package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forgeai/forge-knowledge/engine/schema"
)

// Completer is the text-completion backend used for extraction. It is
// owned by the embedding application; this package only issues calls.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures extraction limits.
type Options struct {
	// DefaultLimit is applied when the extracted intent names none.
	DefaultLimit int
	// MaxLimit caps any requested limit.
	MaxLimit int
	// MaxHops caps variable-length traversal bounds.
	MaxHops int
}

// DefaultOptions returns the standard extraction limits.
func DefaultOptions() Options {
	return Options{
		DefaultLimit: 20,
		MaxLimit:     500,
		MaxHops:      10,
	}
}

// Extractor turns a free-text question into a QueryIntent. The completion
// backend is the primary path; any failure there degrades silently to the
// deterministic keyword fallback, so extraction itself never fails.
type Extractor struct {
	oracle Completer
	schema *schema.Graph
	opts   Options
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil oracle forces the fallback path.
func NewExtractor(oracle Completer, sch *schema.Graph, opts Options, logger *slog.Logger) *Extractor {
	if sch == nil {
		sch = schema.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultOptions().DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultOptions().MaxLimit
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultOptions().MaxHops
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{oracle: oracle, schema: sch, opts: opts, logger: logger}
}

// Extract produces a QueryIntent for the question. The returned intent is
// always valid; the Method field says whether the oracle or the fallback
// produced it.
func (e *Extractor) Extract(ctx context.Context, question string) QueryIntent {
	if e.oracle != nil {
		qi, err := e.extractWithOracle(ctx, question)
		if err == nil {
			return qi
		}
		e.logger.Warn("intent: oracle extraction failed, using fallback", "err", err)
	}
	return e.Fallback(question)
}

func (e *Extractor) extractWithOracle(ctx context.Context, question string) (QueryIntent, error) {
	resp, err := e.oracle.Complete(ctx, e.buildPrompt(question))
	if err != nil {
		return QueryIntent{}, fmt.Errorf("intent: complete: %w", err)
	}

	loose, err := recoverJSON(resp)
	if err != nil {
		return QueryIntent{}, fmt.Errorf("intent: parse completion: %w", err)
	}

	qi := e.fromLoose(loose)
	if err := qi.Validate(); err != nil {
		return QueryIntent{}, fmt.Errorf("intent: invalid oracle intent: %w", err)
	}
	qi.Method = MethodOracle
	return qi, nil
}

// buildPrompt embeds the schema inventory and the question into an
// instruction asking for structured JSON.
func (e *Extractor) buildPrompt(question string) string {
	var b strings.Builder
	b.WriteString("You translate questions about a knowledge graph into a JSON query intent.\n\n")
	b.WriteString("Graph schema:\n")
	b.WriteString(e.schema.PromptInventory())
	b.WriteString(`
Respond with ONLY a JSON object of this shape:
{
  "entities": [{"alias": "c", "label": "Capsule", "properties": {}}],
  "paths": [{"source": {"alias": "u", "label": "User"},
             "relationship": {"type": "CREATED", "direction": "out", "min_hops": 1, "max_hops": 1},
             "target": {"alias": "c", "label": "Capsule"}}],
  "constraints": [{"field": "c.domain", "operator": "=", "value": "ai"}],
  "aggregations": [{"function": "COUNT", "field": "c", "alias": "total"}],
  "order_by": [{"field": "c.created_at", "descending": true}],
  "return_fields": ["c.title"],
  "limit": 20,
  "is_count_query": false
}
Omit sections that do not apply. Operators: =, !=, >, >=, <, <=, CONTAINS, IN, STARTS_WITH, ENDS_WITH.

Question: `)
	b.WriteString(question)
	return b.String()
}

// fromLoose builds a typed intent from loosely-typed JSON field by field.
// Unknown keys are dropped; malformed sections are skipped rather than
// failing the whole intent, because completion output drifts.
func (e *Extractor) fromLoose(m map[string]any) QueryIntent {
	qi := QueryIntent{Limit: e.opts.DefaultLimit}

	for _, raw := range looseSlice(m["entities"]) {
		if ent, ok := looseEntity(raw); ok {
			qi.Entities = append(qi.Entities, ent)
		}
	}

	for _, raw := range looseSlice(m["paths"]) {
		pm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		src, okS := looseEntity(pm["source"])
		tgt, okT := looseEntity(pm["target"])
		rm, okR := pm["relationship"].(map[string]any)
		if !okS || !okT || !okR {
			continue
		}
		rel := RelationshipRef{
			Type:      looseString(rm["type"]),
			Direction: directionFromString(looseString(rm["direction"])),
			MinHops:   looseInt(rm["min_hops"], 1),
			MaxHops:   looseInt(rm["max_hops"], 1),
		}
		if rel.Type == "" {
			continue
		}
		if rel.MinHops < 0 {
			rel.MinHops = 0
		}
		if rel.MaxHops < rel.MinHops {
			rel.MaxHops = rel.MinHops
		}
		if rel.MaxHops > e.opts.MaxHops {
			rel.MaxHops = e.opts.MaxHops
		}
		qi.Paths = append(qi.Paths, PathPattern{Source: src, Rel: rel, Target: tgt})
	}

	for _, raw := range looseSlice(m["constraints"]) {
		cm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		field := looseString(cm["field"])
		if field == "" {
			continue
		}
		qi.Constraints = append(qi.Constraints, Constraint{
			Field: field,
			Op:    operatorFromString(looseString(cm["operator"])),
			Value: cm["value"],
		})
	}

	for _, raw := range looseSlice(m["aggregations"]) {
		am, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fun, ok := aggFromString(looseString(am["function"]))
		if !ok {
			continue
		}
		agg := Aggregation{
			Func:  fun,
			Field: looseString(am["field"]),
			Alias: looseString(am["alias"]),
		}
		if agg.Alias == "" {
			agg.Alias = strings.ToLower(string(agg.Func)) + "_result"
		}
		qi.Aggregations = append(qi.Aggregations, agg)
	}
	qi.IsAggregation = len(qi.Aggregations) > 0

	for _, raw := range looseSlice(m["order_by"]) {
		om, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		field := looseString(om["field"])
		if field == "" {
			continue
		}
		desc := looseBool(om["descending"])
		if strings.EqualFold(looseString(om["direction"]), "DESC") {
			desc = true
		}
		qi.OrderBy = append(qi.OrderBy, OrderBy{Field: field, Descending: desc})
	}

	for _, raw := range looseSlice(m["return_fields"]) {
		if f := looseString(raw); f != "" {
			qi.ReturnFields = append(qi.ReturnFields, f)
		}
	}

	if limit := looseInt(m["limit"], 0); limit > 0 {
		qi.Limit = limit
	}
	if qi.Limit > e.opts.MaxLimit {
		qi.Limit = e.opts.MaxLimit
	}

	qi.IsCount = looseBool(m["is_count_query"])

	return qi
}

func looseEntity(raw any) (EntityRef, bool) {
	em, ok := raw.(map[string]any)
	if !ok {
		return EntityRef{}, false
	}
	ent := EntityRef{
		Alias: looseString(em["alias"]),
		Label: looseString(em["label"]),
	}
	if ent.Alias == "" || ent.Label == "" {
		return EntityRef{}, false
	}
	if props, ok := em["properties"].(map[string]any); ok && len(props) > 0 {
		ent.Properties = props
	}
	return ent, true
}

func looseSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func looseString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func looseInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

func looseBool(v any) bool {
	b, _ := v.(bool)
	return b
}
