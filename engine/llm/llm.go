// Package llm talks to the chat-completion upstream that writes grounded
// answers. Every error returned from this package wraps domain.ErrLLMFailure
// so callers can treat the whole generation layer as one failure kind.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/medrag/engine/domain"
)

var (
	// ErrLLMDisabled is returned by Disabled for every call.
	ErrLLMDisabled = fmt.Errorf("%w: llm disabled: no API key configured", domain.ErrLLMFailure)
	// ErrEmptyCompletion is returned when the upstream answered without text.
	ErrEmptyCompletion = fmt.Errorf("%w: empty completion", domain.ErrLLMFailure)
)

// Request is one chat completion call.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completion is the generated answer.
type Completion struct {
	Text  string
	Model string
	Usage *domain.TokenUsage
}

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Model names the configured model, reported even when calls fail.
	Model() string
}

// Disabled is the Completer used when no API key is configured.
type Disabled struct {
	ModelName string
}

// Complete implements Completer.
func (d Disabled) Complete(context.Context, Request) (*Completion, error) {
	return nil, ErrLLMDisabled
}

// Model implements Completer.
func (d Disabled) Model() string { return d.ModelName }

// IsDisabled reports whether c never reaches an upstream.
func IsDisabled(c Completer) bool {
	switch c.(type) {
	case Disabled, *Disabled:
		return true
	}
	if g, ok := c.(*Guard); ok {
		return IsDisabled(g.inner)
	}
	return false
}

// Reason is the short operator-facing description of a generation failure.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLLMDisabled):
		return "llm disabled: no API key configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "llm timeout"
	case errors.Is(err, ErrRejected):
		return "llm unavailable: " + rejectionReason(err)
	case errors.Is(err, ErrEmptyCompletion):
		return "llm returned an empty completion"
	}
	return "llm error"
}

func wrap(op string, err error) error {
	if errors.Is(err, domain.ErrLLMFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrLLMFailure, op, err)
}
