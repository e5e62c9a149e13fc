package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/pkg/resilience"
)

// ErrRejected marks calls the guard refused without reaching the upstream.
var ErrRejected = fmt.Errorf("%w: rejected", domain.ErrLLMFailure)

// Guard protects a Completer with a circuit breaker and a non-blocking
// token bucket. It never retries.
type Guard struct {
	inner   Completer
	breaker *resilience.Breaker
	limiter *resilience.Limiter
}

// NewGuard wraps inner. A nil breaker or limiter disables that protection.
func NewGuard(inner Completer, breaker *resilience.Breaker, limiter *resilience.Limiter) *Guard {
	return &Guard{inner: inner, breaker: breaker, limiter: limiter}
}

// Model implements Completer.
func (g *Guard) Model() string { return g.inner.Model() }

// Complete implements Completer.
func (g *Guard) Complete(ctx context.Context, req Request) (*Completion, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, fmt.Errorf("%w: %w", ErrRejected, resilience.ErrRateLimited)
	}
	if g.breaker == nil {
		return g.inner.Complete(ctx, req)
	}
	out, err := resilience.Do(g.breaker, ctx, func(ctx context.Context) (*Completion, error) {
		return g.inner.Complete(ctx, req)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return out, err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit open"
	}
	return "rejected"
}
