package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// embeddingsAPI is the subset of the go-openai client used here.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAI embeds through any OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	client embeddingsAPI
	model  string
	dims   int
}

// NewOpenAI builds an embedder against baseURL (empty means api.openai.com).
func NewOpenAI(apiKey, baseURL, model string, dims int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, dims: dims}
}

// NewOpenAIWithClient is used by tests to inject a fake client.
func NewOpenAIWithClient(client embeddingsAPI, model string, dims int) *OpenAI {
	return &OpenAI{client: client, model: model, dims: dims}
}

// Name implements Embedder.
func (o *OpenAI) Name() string { return "openai/" + o.model }

// Dimension implements Embedder.
func (o *OpenAI) Dimension() int { return o.dims }

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request; the response is reordered by
// the index the provider reports.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: openai: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: openai: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embed: openai: bad index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
