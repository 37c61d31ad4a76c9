package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedOracle returns a fixed completion or error.
type scriptedOracle struct {
	resp string
	err  error
}

func (o *scriptedOracle) Complete(_ context.Context, _ string) (string, error) {
	return o.resp, o.err
}

func TestExtractOraclePath(t *testing.T) {
	oracle := &scriptedOracle{resp: `{
		"entities": [{"alias": "c", "label": "Capsule"}],
		"constraints": [{"field": "c.domain", "operator": "=", "value": "ai"}],
		"return_fields": ["c.title"],
		"limit": 5
	}`}
	e := NewExtractor(oracle, nil, Options{}, nil)

	qi := e.Extract(context.Background(), "show ai capsules")
	if qi.Method != MethodOracle {
		t.Fatalf("Method = %q, want oracle", qi.Method)
	}
	if len(qi.Entities) != 1 || qi.Entities[0].Label != "Capsule" {
		t.Fatalf("entities = %+v", qi.Entities)
	}
	if len(qi.Constraints) != 1 || qi.Constraints[0].Op != OpEquals {
		t.Fatalf("constraints = %+v", qi.Constraints)
	}
	if qi.Limit != 5 {
		t.Fatalf("Limit = %d, want 5", qi.Limit)
	}
}

func TestExtractFallsBackOnOracleError(t *testing.T) {
	e := NewExtractor(&scriptedOracle{err: errors.New("connection refused")}, nil, Options{}, nil)
	qi := e.Extract(context.Background(), "capsules about graph databases")
	if qi.Method != MethodFallback {
		t.Fatalf("Method = %q, want fallback", qi.Method)
	}
	if err := qi.Validate(); err != nil {
		t.Fatalf("fallback intent invalid: %v", err)
	}
}

func TestExtractFallsBackOnGarbageCompletion(t *testing.T) {
	cases := []string{
		"I'm sorry, I cannot help with that.",
		"{not json at all",
		`{"entities": []}`,                                   // valid JSON, no entities
		`{"entities": [{"alias": "c", "label": "Capsule"}], "constraints": [{"field": "x.title", "operator": "="}]}`, // unknown alias
	}
	for _, resp := range cases {
		e := NewExtractor(&scriptedOracle{resp: resp}, nil, Options{}, nil)
		qi := e.Extract(context.Background(), "what capsules exist?")
		if qi.Method != MethodFallback {
			t.Errorf("response %q: Method = %q, want fallback", resp, qi.Method)
		}
	}
}

func TestExtractNilOracleUsesFallback(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.Extract(context.Background(), "how many capsules are there?")
	if qi.Method != MethodFallback {
		t.Fatalf("Method = %q, want fallback", qi.Method)
	}
	if !qi.IsCount {
		t.Fatal("count question did not produce a count intent")
	}
}

func TestExtractRecoversFencedJSON(t *testing.T) {
	oracle := &scriptedOracle{resp: "Here is the intent:\n```json\n" +
		`{"entities": [{"alias": "c", "label": "Capsule"}], "return_fields": ["c.title"]}` +
		"\n```\nLet me know if you need anything else."}
	e := NewExtractor(oracle, nil, Options{}, nil)
	qi := e.Extract(context.Background(), "list capsules")
	if qi.Method != MethodOracle {
		t.Fatalf("Method = %q, want oracle", qi.Method)
	}
}

func TestFromLooseDefaultsAndCaps(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)

	qi := e.fromLoose(map[string]any{
		"entities": []any{map[string]any{"alias": "c", "label": "Capsule"}},
	})
	if qi.Limit != 20 {
		t.Fatalf("default Limit = %d, want 20", qi.Limit)
	}

	qi = e.fromLoose(map[string]any{
		"entities": []any{map[string]any{"alias": "c", "label": "Capsule"}},
		"limit":    float64(9999),
	})
	if qi.Limit != 500 {
		t.Fatalf("capped Limit = %d, want 500", qi.Limit)
	}
}

func TestFromLooseClampsHops(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.fromLoose(map[string]any{
		"entities": []any{map[string]any{"alias": "c", "label": "Capsule"}},
		"paths": []any{map[string]any{
			"source": map[string]any{"alias": "a", "label": "Capsule"},
			"target": map[string]any{"alias": "b", "label": "Capsule"},
			"relationship": map[string]any{
				"type": "LINKED_TO", "direction": "out",
				"min_hops": float64(1), "max_hops": float64(50),
			},
		}},
	})
	if len(qi.Paths) != 1 {
		t.Fatalf("paths = %+v", qi.Paths)
	}
	if qi.Paths[0].Rel.MaxHops != 10 {
		t.Fatalf("MaxHops = %d, want clamp to 10", qi.Paths[0].Rel.MaxHops)
	}
}

func TestFromLooseSkipsMalformedSections(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.fromLoose(map[string]any{
		"entities": []any{
			map[string]any{"alias": "c", "label": "Capsule"},
			map[string]any{"alias": ""}, // dropped
			"not an object",             // dropped
		},
		"constraints": []any{
			map[string]any{"operator": "="}, // no field, dropped
		},
		"aggregations": []any{
			map[string]any{"function": "MEDIAN", "field": "c.x"}, // unknown func, dropped
			map[string]any{"function": "AVG", "field": "c.trust_level"},
		},
	})
	if len(qi.Entities) != 1 {
		t.Fatalf("entities = %+v", qi.Entities)
	}
	if len(qi.Constraints) != 0 {
		t.Fatalf("constraints = %+v", qi.Constraints)
	}
	if len(qi.Aggregations) != 1 || qi.Aggregations[0].Alias != "avg_result" {
		t.Fatalf("aggregations = %+v", qi.Aggregations)
	}
}

func TestBuildPromptIncludesSchema(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	prompt := e.buildPrompt("who created the trust model?")
	for _, want := range []string{"Capsule", "CREATED", "who created the trust model?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
