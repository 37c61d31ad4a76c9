package intent

import (
	"testing"

	"github.com/forgeai/forge-knowledge/engine/schema"
)

func TestExtractTopic(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"What capsules are about machine learning?", "capsules machine learning"},
		{"Find all the insights!", "insights"},
		{"Who created the trust model?", "created trust model"},
		{"", ""},
		{"the a an of", ""},
		{"alpha beta gamma delta epsilon zeta eta", "alpha beta gamma delta epsilon"},
	}
	for _, tc := range cases {
		if got := ExtractTopic(tc.question); got != tc.want {
			t.Errorf("ExtractTopic(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestFallbackWhoCreated(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.Fallback("Who created the governance capsule?")
	if qi.Method != MethodFallback {
		t.Fatalf("Method = %q", qi.Method)
	}
	if len(qi.ReturnFields) != 2 || qi.ReturnFields[0] != "c.created_by" {
		t.Fatalf("ReturnFields = %v", qi.ReturnFields)
	}
	if err := qi.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestFallbackHowMany(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.Fallback("How many capsules mention embeddings?")
	if !qi.IsCount || !qi.IsAggregation {
		t.Fatalf("count flags not set: %+v", qi)
	}
	if len(qi.Aggregations) != 1 || qi.Aggregations[0].Func != AggCount {
		t.Fatalf("Aggregations = %+v", qi.Aggregations)
	}
}

func TestFallbackTopicSearch(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.Fallback("Tell me about vector embeddings")
	if len(qi.Constraints) != 1 {
		t.Fatalf("Constraints = %+v", qi.Constraints)
	}
	c := qi.Constraints[0]
	if c.Field != "c."+schema.SearchField || c.Op != OpContains {
		t.Fatalf("constraint = %+v", c)
	}
	if c.Value.(string) == "" {
		t.Fatal("empty topic value")
	}
	if qi.Entities[0].Label != schema.PrimaryLabel {
		t.Fatalf("primary label = %q", qi.Entities[0].Label)
	}
}

func TestFallbackEmptyQuestion(t *testing.T) {
	e := NewExtractor(nil, nil, Options{}, nil)
	qi := e.Fallback("")
	if len(qi.Constraints) != 0 {
		t.Fatalf("empty question produced constraints: %+v", qi.Constraints)
	}
	if err := qi.Validate(); err != nil {
		t.Fatal(err)
	}
	if qi.Limit != 20 {
		t.Fatalf("Limit = %d", qi.Limit)
	}
}
