package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeEnricher struct {
	related []string
	err     error
}

func (e *fakeEnricher) Related(_ context.Context, _ string, _ int) ([]string, error) {
	return e.related, e.err
}

// promptCapturingOracle records the prompt it was asked to complete.
type promptCapturingOracle struct {
	prompt string
}

func (o *promptCapturingOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.prompt = prompt
	return "ok", nil
}

func TestSynthesisPromptIncludesRowsAndQuestion(t *testing.T) {
	oracle := &promptCapturingOracle{}
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(2)}, oracle, nil, Options{}, nil, nil)

	svc.Query(context.Background(), Request{Question: "what is indexed?", Synthesize: true})

	for _, want := range []string{"what is indexed?", "capsule 0", "capsule 1", "Rows (2 of 2)"} {
		if !strings.Contains(oracle.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, oracle.prompt)
		}
	}
}

func TestSynthesisPromptBoundsRowCount(t *testing.T) {
	oracle := &promptCapturingOracle{}
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(30)}, oracle, nil,
		Options{SummaryRows: 5, MaxResults: 50}, nil, nil)

	svc.Query(context.Background(), Request{Question: "q", Synthesize: true})

	if !strings.Contains(oracle.prompt, "Rows (5 of 30)") {
		t.Fatalf("prompt row bound wrong:\n%s", oracle.prompt)
	}
	if strings.Contains(oracle.prompt, "capsule 6") {
		t.Fatal("prompt includes rows past the summary bound")
	}
}

func TestSynthesisIncludesEnrichment(t *testing.T) {
	oracle := &promptCapturingOracle{}
	enricher := &fakeEnricher{related: []string{"Graph databases: adjacency beats joins."}}
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(1)}, oracle, enricher, Options{}, nil, nil)

	svc.Query(context.Background(), Request{Question: "q", Synthesize: true})

	if !strings.Contains(oracle.prompt, "adjacency beats joins") {
		t.Fatalf("enrichment missing:\n%s", oracle.prompt)
	}
}

func TestSynthesisSurvivesEnricherFailure(t *testing.T) {
	oracle := &promptCapturingOracle{}
	enricher := &fakeEnricher{err: errors.New("qdrant down")}
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(1)}, oracle, enricher, Options{}, nil, nil)

	res := svc.Query(context.Background(), Request{Question: "q", Synthesize: true})
	if res.Answer != "ok" {
		t.Fatalf("Answer = %q", res.Answer)
	}
}

func TestSynthesisNilOracleUsesTemplate(t *testing.T) {
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(2)}, nil, nil, Options{}, nil, nil)
	res := svc.Query(context.Background(), Request{Question: "q", Synthesize: true})
	if res.Answer != "Found 2 results (answer synthesis failed)" {
		t.Fatalf("Answer = %q", res.Answer)
	}
}

func TestSynthesisBlankCompletionUsesTemplate(t *testing.T) {
	svc := New(&fakeCompiler{query: safeQuery()}, &fakeStore{rows: rows(1)}, &fakeOracle{resp: "  \n"}, nil, Options{}, nil, nil)
	res := svc.Query(context.Background(), Request{Question: "q", Synthesize: true})
	if res.Answer != "Found 1 results (answer synthesis failed)" {
		t.Fatalf("Answer = %q", res.Answer)
	}
}
