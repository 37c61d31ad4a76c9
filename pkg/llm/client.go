// Package llm is the Ollama-backed text-completion client. It is the
// subsystem's oracle: prompt in, generated text out. Rate limiting,
// circuit breaking, and optional retry live here because retry policy
// belongs to the collaborator, not to the query pipeline.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forgeai/forge-knowledge/pkg/fn"
	"github.com/forgeai/forge-knowledge/pkg/resilience"
	"golang.org/x/time/rate"
)

// Options configures the client.
type Options struct {
	// Model is the completion model name.
	Model string
	// EmbedModel is used by Embed.
	EmbedModel string
	// Timeout bounds each HTTP call.
	Timeout time.Duration
	// RPS and Burst configure the request rate limit.
	RPS   float64
	Burst int
	// MaxRetries beyond the first attempt. Zero disables retry.
	MaxRetries int
	// Breaker trips after this many consecutive failures.
	Breaker resilience.BreakerOpts
}

// DefaultOptions returns the standard client settings.
func DefaultOptions() Options {
	return Options{
		Model:      "llama3.1:8b",
		EmbedModel: "nomic-embed-text",
		Timeout:    30 * time.Second,
		RPS:        5,
		Burst:      10,
	}
}

// Client talks to an Ollama server over HTTP.
type Client struct {
	baseURL string
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// New creates a Client for the given base URL (e.g. http://localhost:11434).
func New(baseURL string, opts Options) *Client {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = def.EmbedModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RPS <= 0 {
		opts.RPS = def.RPS
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	return &Client{
		baseURL: baseURL,
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		breaker: resilience.NewBreaker(opts.Breaker),
	}
}

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Response string `json:"response"`
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Complete sends the prompt and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.opts.MaxRetries > 0 {
		result := fn.Retry(ctx, fn.RetryOpts{
			MaxAttempts: c.opts.MaxRetries + 1,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Jitter:      true,
		}, func(ctx context.Context) fn.Result[string] {
			return fn.FromPair(c.complete(ctx, prompt))
		})
		return result.Unwrap()
	}
	return c.complete(ctx, prompt)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var resp generateResp
		if err := c.post(ctx, "/api/generate", generateReq{
			Model:  c.opts.Model,
			Prompt: prompt,
			Stream: false,
		}, &resp); err != nil {
			return err
		}
		out = resp.Response
		return nil
	})
	return out, err
}

// Embed returns the embedding vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var resp embedResp
		if err := c.post(ctx, "/api/embeddings", embedReq{
			Model:  c.opts.EmbedModel,
			Prompt: text,
		}, &resp); err != nil {
			return err
		}
		out = make([]float32, len(resp.Embedding))
		for i, v := range resp.Embedding {
			out[i] = float32(v)
		}
		return nil
	})
	return out, err
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decode %s response: %w", path, err)
	}
	return nil
}
