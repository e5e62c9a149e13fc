package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/WessleyAI/medrag/engine/domain"
)

// Defaults for the OpenRouter upstream.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "deepseek/deepseek-r1"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
	DefaultReferer     = "http://localhost:3000"
	DefaultTitle       = "Medical RAG Assistant"
)

// chatAPI is the subset of the go-openai client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures an OpenAI-compatible completer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
	// Timeout bounds the HTTP exchange; callers usually add their own
	// context deadline as well.
	Timeout time.Duration
}

// OpenAI completes through any OpenAI-compatible chat endpoint.
type OpenAI struct {
	client chatAPI
	model  string
}

// NewOpenAI builds a completer from cfg, filling OpenRouter defaults.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": cfg.Referer,
				"X-Title":      cfg.Title,
			},
		},
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

// NewOpenAIWithClient is used by tests to inject a fake client.
func NewOpenAIWithClient(client chatAPI, model string) *OpenAI {
	return &OpenAI{client: client, model: model}
}

// Model implements Completer.
func (o *OpenAI) Model() string { return o.model }

// Complete implements Completer. Zero Temperature and MaxTokens take the
// package defaults.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Completion, error) {
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, wrap("chat completion", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	out := &Completion{Text: strings.TrimSpace(resp.Choices[0].Message.Content), Model: model}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(r)
}
