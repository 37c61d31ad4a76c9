package graph

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestNodeCounts(t *testing.T) {
	sess := &fakeSession{result: &fakeResult{records: []*neo4j.Record{
		record([]string{"label", "count"}, []any{"Capsule", int64(5)}),
		record([]string{"label", "count"}, []any{"User", int64(3)}),
	}}}
	store := NewWithOpener(&fakeOpener{sess: sess})

	counts, err := store.NodeCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts["Capsule"] != 5 || counts["User"] != 3 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestTopDomains(t *testing.T) {
	sess := &fakeSession{result: &fakeResult{records: []*neo4j.Record{
		record([]string{"domain", "capsules"}, []any{"ai", int64(2)}),
		record([]string{"domain", "capsules"}, []any{"platform", int64(1)}),
	}}}
	store := NewWithOpener(&fakeOpener{sess: sess})

	stats, err := store.TopDomains(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].Domain != "ai" || stats[0].Capsules != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if sess.params["limit"] != int64(10) {
		t.Fatalf("params = %v", sess.params)
	}
}
