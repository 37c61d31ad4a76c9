package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/forgeai/forge-knowledge/pkg/resilience"
)

func TestCompleteSendsModelAndPrompt(t *testing.T) {
	var got generateReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(generateResp{Response: "the answer"})
	}))
	defer srv.Close()

	c := New(srv.URL, Options{Model: "test-model", RPS: 1000, Burst: 1000})
	out, err := c.Complete(context.Background(), "the prompt")
	if err != nil {
		t.Fatal(err)
	}
	if out != "the answer" {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "test-model" || got.Prompt != "the prompt" || got.Stream {
		t.Fatalf("request = %+v", got)
	}
}

func TestCompleteErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{RPS: 1000, Burst: 1000})
	_, err := c.Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(generateResp{Response: "recovered"})
	}))
	defer srv.Close()

	c := New(srv.URL, Options{RPS: 1000, Burst: 1000, MaxRetries: 3,
		Breaker: resilience.BreakerOpts{FailThreshold: 10}})
	out, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if out != "recovered" || calls.Load() != 3 {
		t.Fatalf("out = %q, calls = %d", out, calls.Load())
	}
}

func TestBreakerStopsHammering(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{RPS: 1000, Burst: 1000,
		Breaker: resilience.BreakerOpts{FailThreshold: 2}})

	ctx := context.Background()
	c.Complete(ctx, "p")
	c.Complete(ctx, "p")
	// Breaker is now open; further calls must not reach the server.
	c.Complete(ctx, "p")
	c.Complete(ctx, "p")

	if calls.Load() != 2 {
		t.Fatalf("server calls = %d, want 2", calls.Load())
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedReq
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("embed model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(srv.URL, Options{RPS: 1000, Burst: 1000})
	vec, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestDefaultsFilled(t *testing.T) {
	c := New("http://localhost:11434", Options{})
	if c.opts.Model == "" || c.opts.EmbedModel == "" || c.opts.Timeout <= 0 {
		t.Fatalf("opts = %+v", c.opts)
	}
}
