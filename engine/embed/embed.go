// Package embed turns text into fixed-length vectors. Every backend is
// deterministic for a given model and reports failures as
// domain.ErrEmbeddingUnavailable once wrapped by Bounded.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
)

// Embedder is implemented by every embedding backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in order, or an error and no
	// vectors at all.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Bounded decorates an Embedder with a per-call timeout and maps every
// failure to domain.ErrEmbeddingUnavailable.
type Bounded struct {
	inner   Embedder
	timeout time.Duration
}

// NewBounded wraps e. A non-positive timeout disables the deadline.
func NewBounded(e Embedder, timeout time.Duration) *Bounded {
	return &Bounded{inner: e, timeout: timeout}
}

func (b *Bounded) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Embed implements Embedder.
func (b *Bounded) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := b.withDeadline(ctx)
	defer cancel()
	vec, err := b.inner.Embed(ctx, text)
	if err != nil {
		return nil, unavailable(b.inner.Name(), err)
	}
	if d := b.inner.Dimension(); d > 0 && len(vec) != d {
		return nil, unavailable(b.inner.Name(), fmt.Errorf("got %d dims, want %d", len(vec), d))
	}
	return vec, nil
}

// EmbedBatch implements Embedder.
func (b *Bounded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := b.withDeadline(ctx)
	defer cancel()
	vecs, err := b.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, unavailable(b.inner.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, unavailable(b.inner.Name(), fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}

// Dimension implements Embedder.
func (b *Bounded) Dimension() int { return b.inner.Dimension() }

// Name implements Embedder.
func (b *Bounded) Name() string { return b.inner.Name() }

func unavailable(name string, err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return fmt.Errorf("embed %s: %w", name, err)
	}
	return fmt.Errorf("embed %s: %w: %w", name, domain.ErrEmbeddingUnavailable, err)
}
