package intent

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	base := func() QueryIntent {
		return QueryIntent{
			Entities: []EntityRef{{Alias: "c", Label: "Capsule"}},
			Limit:    20,
		}
	}

	t.Run("accepts minimal intent", func(t *testing.T) {
		qi := base()
		if err := qi.Validate(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("rejects empty intent", func(t *testing.T) {
		qi := QueryIntent{}
		if !errors.Is(qi.Validate(), ErrNoEntities) {
			t.Fatal("want ErrNoEntities")
		}
	})

	t.Run("rejects duplicate aliases", func(t *testing.T) {
		qi := base()
		qi.Entities = append(qi.Entities, EntityRef{Alias: "c", Label: "User"})
		if !errors.Is(qi.Validate(), ErrDuplicateAlias) {
			t.Fatal("want ErrDuplicateAlias")
		}
	})

	t.Run("rejects undeclared constraint alias", func(t *testing.T) {
		qi := base()
		qi.Constraints = []Constraint{{Field: "x.title", Op: OpEquals, Value: "v"}}
		if !errors.Is(qi.Validate(), ErrUnknownAlias) {
			t.Fatal("want ErrUnknownAlias")
		}
	})

	t.Run("accepts path-declared aliases", func(t *testing.T) {
		qi := base()
		qi.Paths = []PathPattern{{
			Source: EntityRef{Alias: "u", Label: "User"},
			Rel:    RelationshipRef{Type: "CREATED", Direction: DirOut, MinHops: 1, MaxHops: 1},
			Target: EntityRef{Alias: "c", Label: "Capsule"},
		}}
		qi.ReturnFields = []string{"u.username", "c.title"}
		if err := qi.Validate(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("accepts star aggregation field", func(t *testing.T) {
		qi := base()
		qi.Aggregations = []Aggregation{{Func: AggCount, Field: "*", Alias: "total"}}
		if err := qi.Validate(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestAliasesOrderAndDedup(t *testing.T) {
	qi := QueryIntent{
		Entities: []EntityRef{{Alias: "c", Label: "Capsule"}},
		Paths: []PathPattern{{
			Source: EntityRef{Alias: "u", Label: "User"},
			Rel:    RelationshipRef{Type: "CREATED"},
			Target: EntityRef{Alias: "c", Label: "Capsule"},
		}},
	}
	got := qi.Aliases()
	if len(got) != 2 || got[0] != "c" || got[1] != "u" {
		t.Fatalf("Aliases() = %v, want [c u]", got)
	}
}

func TestOperatorCypher(t *testing.T) {
	cases := []struct {
		op   Operator
		want string
	}{
		{OpEquals, "="},
		{OpNotEquals, "<>"},
		{OpContains, "CONTAINS"},
		{OpStartsWith, "STARTS WITH"},
		{OpEndsWith, "ENDS WITH"},
		{OpIn, "IN"},
	}
	for _, tc := range cases {
		if got := tc.op.Cypher(); got != tc.want {
			t.Errorf("%q.Cypher() = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestOperatorFromStringDefaultsToEquals(t *testing.T) {
	if op := operatorFromString("LIKE"); op != OpEquals {
		t.Fatalf("got %q, want default =", op)
	}
	if op := operatorFromString("<>"); op != OpNotEquals {
		t.Fatalf("got %q, want !=", op)
	}
}

func TestDirectionFromString(t *testing.T) {
	cases := map[string]Direction{
		"out":      DirOut,
		"incoming": DirIn,
		"->":       DirOut,
		"sideways": DirBoth,
		"":         DirBoth,
	}
	for in, want := range cases {
		if got := directionFromString(in); got != want {
			t.Errorf("directionFromString(%q) = %q, want %q", in, got, want)
		}
	}
}
