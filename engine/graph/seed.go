package graph

import (
	"context"
	"fmt"
	"time"
)

// SeedUsers are the demo accounts created by Seed.
var SeedUsers = []User{
	{ID: "u-ada", Username: "ada", TrustLevel: 90, Reputation: 4.8},
	{ID: "u-lin", Username: "lin", TrustLevel: 60, Reputation: 3.9},
	{ID: "u-sam", Username: "sam", TrustLevel: 30, Reputation: 2.1},
}

// SeedCapsules are the demo knowledge capsules created by Seed.
var SeedCapsules = []Capsule{
	{
		ID: "cap-ml-intro", Title: "Machine learning fundamentals",
		Summary: "Supervised vs unsupervised learning, loss functions, generalization.",
		Content: "Machine learning systems learn a mapping from data rather than explicit rules...",
		Domain:  "ai", CreatedBy: "ada", TrustLevel: 40,
	},
	{
		ID: "cap-graph-db", Title: "Graph databases in practice",
		Summary: "Property graphs, traversals, and when adjacency beats joins.",
		Content: "A property graph stores entities as nodes and relationships as first-class edges...",
		Domain:  "data", CreatedBy: "ada", TrustLevel: 50,
	},
	{
		ID: "cap-trust-model", Title: "Trust-weighted content ranking",
		Summary: "How per-row trust levels gate visibility across the platform.",
		Content: "Every capsule carries a trust level; queries are filtered to the caller's ceiling...",
		Domain:  "platform", CreatedBy: "lin", TrustLevel: 70,
	},
	{
		ID: "cap-embeddings", Title: "Text embeddings for retrieval",
		Summary: "Dense vectors, cosine similarity, and approximate nearest neighbours.",
		Content: "An embedding model maps text to a dense vector such that semantic similarity...",
		Domain:  "ai", CreatedBy: "lin", TrustLevel: 45,
	},
	{
		ID: "cap-governance", Title: "Governance voting basics",
		Summary: "Proposal lifecycle and quorum rules on the platform.",
		Content: "Proposals move through draft, open, and closed states; votes are weighted...",
		Domain:  "platform", CreatedBy: "sam", TrustLevel: 25,
	},
}

// seedLinks connect the demo data.
var seedLinks = []Link{
	{From: "u-ada", To: "cap-ml-intro", Type: "CREATED"},
	{From: "u-ada", To: "cap-graph-db", Type: "CREATED"},
	{From: "u-lin", To: "cap-trust-model", Type: "CREATED"},
	{From: "u-lin", To: "cap-embeddings", Type: "CREATED"},
	{From: "u-sam", To: "cap-governance", Type: "CREATED"},
	{From: "cap-ml-intro", To: "cap-embeddings", Type: "LINKED_TO", Weight: 0.8},
	{From: "cap-graph-db", To: "cap-trust-model", Type: "LINKED_TO", Weight: 0.6},
	{From: "u-ada", To: "cap-trust-model", Type: "ENDORSES"},
}

// seedTags tag the demo capsules.
var seedTags = map[string][]string{
	"cap-ml-intro":    {"machine-learning", "basics"},
	"cap-graph-db":    {"graphs", "storage"},
	"cap-trust-model": {"trust", "security"},
	"cap-embeddings":  {"machine-learning", "retrieval"},
	"cap-governance":  {"governance"},
}

// Seed populates the graph with demo users, capsules, links, and tags.
// Idempotent: everything is MERGEd by ID.
func (s *Store) Seed(ctx context.Context) error {
	now := time.Now().UTC()
	for _, u := range SeedUsers {
		if err := s.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("graph: seed user %s: %w", u.ID, err)
		}
	}
	for i, c := range SeedCapsules {
		c.CreatedAt = now.Add(time.Duration(-i) * time.Hour)
		if err := s.SaveCapsule(ctx, c); err != nil {
			return fmt.Errorf("graph: seed capsule %s: %w", c.ID, err)
		}
	}
	for _, l := range seedLinks {
		if err := s.SaveLink(ctx, l); err != nil {
			return fmt.Errorf("graph: seed link %s-%s: %w", l.From, l.To, err)
		}
	}
	for capsuleID, tags := range seedTags {
		for _, tag := range tags {
			if err := s.SaveTag(ctx, capsuleID, tag); err != nil {
				return fmt.Errorf("graph: seed tag %s on %s: %w", tag, capsuleID, err)
			}
		}
	}
	return nil
}
