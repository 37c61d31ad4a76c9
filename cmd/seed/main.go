// Package main seeds the development environment: it writes the sample
// knowledge graph into Neo4j and indexes capsule summaries into Qdrant.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/forgeai/forge-knowledge/engine/graph"
	"github.com/forgeai/forge-knowledge/engine/semantic"
	"github.com/forgeai/forge-knowledge/pkg/fn"
	"github.com/forgeai/forge-knowledge/pkg/llm"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	neo4jURL := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver)
	if err := store.Seed(ctx); err != nil {
		return fmt.Errorf("graph seed: %w", err)
	}
	logger.Info("graph seeded", "users", len(graph.SeedUsers), "capsules", len(graph.SeedCapsules))

	if envOr("SKIP_VECTORS", "") != "" {
		logger.Info("vector indexing skipped")
		return nil
	}

	vectors, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"), envOr("QDRANT_COLLECTION", "forge-capsules"))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	oracle := llm.New(envOr("OLLAMA_URL", "http://localhost:11434"), llm.DefaultOptions())

	// Embed capsule summaries in parallel; every result must be Ok
	// before anything is written.
	results := fn.ParMapResult(graph.SeedCapsules, 4, func(c graph.Capsule) fn.Result[semantic.Record] {
		embedding, err := oracle.Embed(ctx, c.Summary)
		if err != nil {
			return fn.Err[semantic.Record](fmt.Errorf("embed %s: %w", c.ID, err))
		}
		return fn.Ok(semantic.Record{
			ID:        c.ID,
			Embedding: embedding,
			Title:     c.Title,
			Summary:   c.Summary,
			CapsuleID: c.ID,
			Domain:    c.Domain,
		})
	})
	records, err := fn.Collect(results).Unwrap()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no capsules to index")
	}

	if err := vectors.EnsureCollection(ctx, len(records[0].Embedding)); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	for _, batch := range fn.Chunk(records, 128) {
		if err := vectors.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}
	logger.Info("vectors indexed", "count", len(records))
	return nil
}
