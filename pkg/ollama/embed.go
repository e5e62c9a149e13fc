// Package ollama provides an embedding client for Ollama's HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/WessleyAI/medrag/pkg/fn"
)

// DefaultWorkers bounds concurrent requests issued by EmbedBatch.
const DefaultWorkers = 4

// EmbedClient calls POST /api/embeddings on an Ollama server.
type EmbedClient struct {
	baseURL string
	model   string
	dims    int
	workers int
	client  *http.Client
}

// Option configures an EmbedClient.
type Option func(*EmbedClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *EmbedClient) { e.client = c }
}

// WithWorkers sets the EmbedBatch concurrency.
func WithWorkers(n int) Option {
	return func(e *EmbedClient) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEmbedClient creates an Ollama embedding client. dims is the vector size
// the model is expected to return; responses of any other size are rejected.
func NewEmbedClient(baseURL, model string, dims int, opts ...Option) *EmbedClient {
	c := &EmbedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		workers: DefaultWorkers,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding of a single text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedReq{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding")
	}
	if c.dims > 0 && len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("ollama embed: got %d dims, want %d", len(result.Embedding), c.dims)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds every text or fails as a whole.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := fn.ParMapResult(ctx, texts, c.workers, func(ctx context.Context, text string) fn.Result[[]float32] {
		return fn.FromPair(c.Embed(ctx, text))
	})
	vecs, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("ollama embed batch: %w", err)
	}
	return vecs, nil
}

// Dimension returns the configured vector size.
func (c *EmbedClient) Dimension() int { return c.dims }

// Name identifies the backend and model.
func (c *EmbedClient) Name() string { return "ollama/" + c.model }
