package compile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/forgeai/forge-knowledge/engine/guard"
	"github.com/forgeai/forge-knowledge/engine/intent"
)

func newCompiler() *Compiler {
	return New(intent.NewExtractor(nil, nil, intent.Options{}, nil), Options{}, nil)
}

func simpleIntent() intent.QueryIntent {
	return intent.QueryIntent{
		Entities:     []intent.EntityRef{{Alias: "c", Label: "Capsule"}},
		Constraints:  []intent.Constraint{{Field: "c.domain", Op: intent.OpEquals, Value: "ai"}},
		ReturnFields: []string{"c.title"},
		Limit:        20,
	}
}

func TestCompileIntentTrustFilter(t *testing.T) {
	c := newCompiler()

	q, err := c.CompileIntent(simpleIntent(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if !q.TrustFiltered {
		t.Fatal("TrustFiltered = false for non-admin caller")
	}
	if !strings.Contains(q.Cypher, "c.trust_level <= $user_trust_level") {
		t.Fatalf("trust clause missing:\n%s", q.Cypher)
	}
	if q.Params["user_trust_level"] != 50 {
		t.Fatalf("trust param = %v", q.Params["user_trust_level"])
	}
}

func TestCompileIntentAdminSkipsTrustFilter(t *testing.T) {
	c := newCompiler()

	q, err := c.CompileIntent(simpleIntent(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if q.TrustFiltered {
		t.Fatal("TrustFiltered = true for admin caller")
	}
	if strings.Contains(q.Cypher, "trust_level") {
		t.Fatalf("admin query carries trust clause:\n%s", q.Cypher)
	}
	if _, ok := q.Params["user_trust_level"]; ok {
		t.Fatal("admin query binds trust param")
	}
}

func TestCompileIntentTrustFilterCoversEveryAlias(t *testing.T) {
	c := newCompiler()
	qi := intent.QueryIntent{
		Paths: []intent.PathPattern{{
			Source: intent.EntityRef{Alias: "u", Label: "User"},
			Rel:    intent.RelationshipRef{Type: "CREATED", Direction: intent.DirOut, MinHops: 1, MaxHops: 1},
			Target: intent.EntityRef{Alias: "c", Label: "Capsule"},
		}},
		ReturnFields: []string{"u.username", "c.title"},
		Limit:        10,
	}

	q, err := c.CompileIntent(qi, 30)
	if err != nil {
		t.Fatal(err)
	}
	for _, alias := range []string{"u", "c"} {
		want := alias + ".trust_level <= $user_trust_level"
		if !strings.Contains(q.Cypher, want) {
			t.Errorf("missing %q in:\n%s", want, q.Cypher)
		}
	}
}

func TestCompileIntentNoLiteralValues(t *testing.T) {
	c := newCompiler()
	qi := intent.QueryIntent{
		Entities: []intent.EntityRef{{
			Alias: "c", Label: "Capsule",
			Properties: map[string]any{"domain": "ai'} ) MATCH (x) DELETE x //"},
		}},
		Constraints: []intent.Constraint{
			{Field: "c.title", Op: intent.OpContains, Value: `"; DROP ALL`},
		},
		ReturnFields: []string{"c.title"},
		Limit:        20,
	}

	q, err := c.CompileIntent(qi, 50)
	if err != nil {
		t.Fatal(err)
	}
	// Hostile values must appear only in the parameter map, never in the
	// query text.
	for name, val := range q.Params {
		s, ok := val.(string)
		if !ok {
			continue
		}
		if strings.Contains(q.Cypher, s) {
			t.Errorf("parameter %s value leaked into query text:\n%s", name, q.Cypher)
		}
	}
	if err := guard.Validate(q.Cypher); err != nil {
		t.Fatalf("generated query rejected by guard: %v\n%s", err, q.Cypher)
	}
}

func TestCompileIntentPassesGuard(t *testing.T) {
	c := newCompiler()
	intents := []intent.QueryIntent{
		simpleIntent(),
		{
			Entities:     []intent.EntityRef{{Alias: "c", Label: "Capsule"}},
			IsCount:      true,
			Limit:        20,
		},
		{
			Paths: []intent.PathPattern{{
				Source: intent.EntityRef{Alias: "a", Label: "Capsule"},
				Rel:    intent.RelationshipRef{Type: "LINKED_TO", Direction: intent.DirOut, MinHops: 1, MaxHops: 3},
				Target: intent.EntityRef{Alias: "b", Label: "Capsule"},
			}},
			ReturnFields: []string{"b.title"},
			OrderBy:      []intent.OrderBy{{Field: "b.title", Descending: true}},
			Limit:        5,
		},
	}
	for i, qi := range intents {
		q, err := c.CompileIntent(qi, 50)
		if err != nil {
			t.Fatalf("intent %d: %v", i, err)
		}
		if err := guard.Validate(q.Cypher); err != nil {
			t.Errorf("intent %d rejected by guard: %v\n%s", i, err, q.Cypher)
		}
		if !q.ReadOnly {
			t.Errorf("intent %d: ReadOnly = false", i)
		}
	}
}

func TestCompileIntentHopCeiling(t *testing.T) {
	c := newCompiler()
	qi := intent.QueryIntent{
		Paths: []intent.PathPattern{{
			Source: intent.EntityRef{Alias: "a", Label: "Capsule"},
			Rel:    intent.RelationshipRef{Type: "LINKED_TO", Direction: intent.DirOut, MinHops: 1, MaxHops: 99},
			Target: intent.EntityRef{Alias: "b", Label: "Capsule"},
		}},
		ReturnFields: []string{"b.title"},
		Limit:        5,
	}
	q, err := c.CompileIntent(qi, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q.Cypher, "*1..10") {
		t.Fatalf("hop ceiling not applied:\n%s", q.Cypher)
	}
}

func TestCompileIntentRelationshipDirections(t *testing.T) {
	c := newCompiler()
	cases := []struct {
		dir  intent.Direction
		want string
	}{
		{intent.DirOut, "-[:CREATED]->"},
		{intent.DirIn, "<-[:CREATED]-"},
		{intent.DirBoth, "-[:CREATED]-"},
	}
	for _, tc := range cases {
		qi := intent.QueryIntent{
			Paths: []intent.PathPattern{{
				Source: intent.EntityRef{Alias: "u", Label: "User"},
				Rel:    intent.RelationshipRef{Type: "CREATED", Direction: tc.dir, MinHops: 1, MaxHops: 1},
				Target: intent.EntityRef{Alias: "c", Label: "Capsule"},
			}},
			ReturnFields: []string{"c.title"},
			Limit:        5,
		}
		q, err := c.CompileIntent(qi, 50)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(q.Cypher, tc.want) {
			t.Errorf("direction %q: missing %q in:\n%s", tc.dir, tc.want, q.Cypher)
		}
	}
}

func TestCompileIntentRejectsHostileIdentifiers(t *testing.T) {
	c := newCompiler()
	bad := []intent.QueryIntent{
		{Entities: []intent.EntityRef{{Alias: "c", Label: "Capsule) DELETE (c"}}, Limit: 5},
		{Entities: []intent.EntityRef{{Alias: "c", Label: "Capsule",
			Properties: map[string]any{"x: 1} ) DELETE (c": "v"}}}, Limit: 5},
		{
			Paths: []intent.PathPattern{{
				Source: intent.EntityRef{Alias: "a", Label: "Capsule"},
				Rel:    intent.RelationshipRef{Type: "X]->() DELETE (a", MinHops: 1, MaxHops: 1},
				Target: intent.EntityRef{Alias: "b", Label: "Capsule"},
			}},
			Limit: 5,
		},
		{
			Entities:    []intent.EntityRef{{Alias: "c", Label: "Capsule"}},
			Constraints: []intent.Constraint{{Field: "c.title = '' OR 1", Op: intent.OpEquals, Value: "v"}},
			Limit:       5,
		},
	}
	for i, qi := range bad {
		if _, err := c.CompileIntent(qi, 50); err == nil {
			t.Errorf("intent %d: hostile identifier accepted", i)
		}
	}
}

// Return fields, order-by fields, aggregation columns, and aliases are
// spliced into the query text like labels are; a UNION smuggled through
// any of them would read rows with no trust ceiling.
func TestCompileIntentRejectsHostileProjections(t *testing.T) {
	c := newCompiler()
	capsule := []intent.EntityRef{{Alias: "c", Label: "Capsule"}}
	union := "c.title AS t UNION MATCH (x:Capsule) RETURN x.content AS t"

	bad := []intent.QueryIntent{
		{Entities: capsule, ReturnFields: []string{union}, Limit: 5},
		{Entities: capsule, OrderBy: []intent.OrderBy{{Field: "c.title DESC UNION MATCH (x:Capsule) RETURN x.content"}}, Limit: 5},
		{Entities: capsule, IsAggregation: true, Limit: 5,
			Aggregations: []intent.Aggregation{{Func: intent.AggCount, Field: "c.id) AS n UNION MATCH (x:Capsule) RETURN count(x", Alias: "n"}}},
		{Entities: capsule, IsAggregation: true, Limit: 5,
			Aggregations: []intent.Aggregation{{Func: intent.AggCount, Field: "c.id", Alias: "n UNION MATCH (x:Capsule) RETURN x.content AS n"}}},
		{Entities: capsule, IsAggregation: true, Limit: 5,
			Aggregations: []intent.Aggregation{{Func: intent.AggFunc("count(c.id) AS n UNION MATCH (x:Capsule) RETURN count(x"), Field: "c.id", Alias: "n"}}},
		{Entities: []intent.EntityRef{{Alias: "c) WITH c MATCH (x:Capsule", Label: "Capsule"}}, Limit: 5},
	}
	for i, qi := range bad {
		q, err := c.CompileIntent(qi, 10)
		if err == nil {
			t.Errorf("intent %d: hostile projection accepted, compiled to:\n%s", i, q.Cypher)
		}
	}
}

func TestCompileIntentLimitBound(t *testing.T) {
	c := newCompiler()
	q, err := c.CompileIntent(simpleIntent(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q.Cypher, "LIMIT $limit") {
		t.Fatalf("limit not bound:\n%s", q.Cypher)
	}
	if q.Params["limit"] != 20 {
		t.Fatalf("limit param = %v", q.Params["limit"])
	}
}

func TestComplexityEstimate(t *testing.T) {
	c := newCompiler()
	path := func(maxHops int) []intent.PathPattern {
		return []intent.PathPattern{{
			Source: intent.EntityRef{Alias: "a", Label: "Capsule"},
			Rel:    intent.RelationshipRef{Type: "LINKED_TO", MinHops: 1, MaxHops: maxHops},
			Target: intent.EntityRef{Alias: "b", Label: "Capsule"},
		}}
	}
	cases := []struct {
		name string
		qi   intent.QueryIntent
		want Complexity
	}{
		{"count only", intent.QueryIntent{
			Entities: []intent.EntityRef{{Alias: "c", Label: "Capsule"}},
			IsCount:  true, Limit: 5}, Simple},
		{"single entity", intent.QueryIntent{
			Entities: []intent.EntityRef{{Alias: "c", Label: "Capsule"}}, Limit: 5}, Simple},
		{"three entities", intent.QueryIntent{
			Entities: []intent.EntityRef{
				{Alias: "a", Label: "Capsule"},
				{Alias: "b", Label: "User"},
				{Alias: "d", Label: "Tag"}}, Limit: 5}, Moderate},
		{"shallow traversal", intent.QueryIntent{Paths: path(3), Limit: 5}, Complex},
		{"deep traversal", intent.QueryIntent{Paths: path(8), Limit: 5}, Expensive},
	}
	for _, tc := range cases {
		q, err := c.CompileIntent(tc.qi, 100)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if q.Complexity != tc.want {
			t.Errorf("%s: complexity = %s, want %s", tc.name, q.Complexity, tc.want)
		}
	}
}

func TestExplanation(t *testing.T) {
	c := newCompiler()

	q, _ := c.CompileIntent(simpleIntent(), 50)
	if q.Explanation != "Find Capsule nodes matching 1 condition(s)" {
		t.Fatalf("explanation = %q", q.Explanation)
	}

	qi := intent.QueryIntent{
		Entities:     []intent.EntityRef{{Alias: "c", Label: "Capsule"}},
		IsCount:      true,
		Limit:        5,
	}
	q, _ = c.CompileIntent(qi, 50)
	if !strings.HasPrefix(q.Explanation, "Count Capsule nodes") {
		t.Fatalf("explanation = %q", q.Explanation)
	}
}

func TestCompileUsesExtractor(t *testing.T) {
	c := newCompiler()
	q, err := c.Compile(context.Background(), "capsules about graph databases", 50)
	if err != nil {
		t.Fatal(err)
	}
	if q.Method != intent.MethodFallback {
		t.Fatalf("Method = %q, want fallback (nil oracle)", q.Method)
	}
	if err := guard.Validate(q.Cypher); err != nil {
		t.Fatalf("compiled question rejected by guard: %v\n%s", err, q.Cypher)
	}
}

func TestParamBinder(t *testing.T) {
	b := NewParamBinder()
	if ph := b.Bind("v0"); ph != "$p0" {
		t.Fatalf("first placeholder = %q", ph)
	}
	if ph := b.Bind(42); ph != "$p1" {
		t.Fatalf("second placeholder = %q", ph)
	}
	if ph := b.BindNamed("limit", 20); ph != "$limit" {
		t.Fatalf("named placeholder = %q", ph)
	}
	params := b.Params()
	if params["p0"] != "v0" || params["p1"] != 42 || params["limit"] != 20 {
		t.Fatalf("params = %v", params)
	}
}

func TestParamBinderDistinctPlaceholders(t *testing.T) {
	b := NewParamBinder()
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		ph := b.Bind(fmt.Sprintf("value-%d", i))
		if seen[ph] {
			t.Fatalf("placeholder %q reused", ph)
		}
		seen[ph] = true
	}
	if len(b.Params()) != 10 {
		t.Fatalf("params = %v", b.Params())
	}
}
