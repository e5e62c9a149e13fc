// Package retrieve runs a similarity query against one collection and turns
// index hits into domain.RetrievalHit values with normalised scores.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/semantic"
)

// Normalization maps a raw index score onto [0,1].
type Normalization string

const (
	// NormalizeCosine maps cosine similarity in [-1,1] linearly onto [0,1].
	NormalizeCosine Normalization = "cosine"
	// NormalizeClamp clips the raw score to [0,1].
	NormalizeClamp Normalization = "clamp"
)

// ParseNormalization accepts "cosine" or "clamp"; anything else is an error.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(s))) {
	case NormalizeCosine, "":
		return NormalizeCosine, nil
	case NormalizeClamp:
		return NormalizeClamp, nil
	}
	return "", fmt.Errorf("retrieve: unknown score normalization %q", s)
}

// Apply normalises a raw score.
func (n Normalization) Apply(raw float32) float64 {
	s := float64(raw)
	if n != NormalizeClamp {
		s = (s + 1) / 2
	}
	return min(max(s, 0), 1)
}

// Options configures a Retriever.
type Options struct {
	Normalization Normalization
	// MinRelevance drops hits whose normalised score is below it.
	MinRelevance float64
}

// DefaultOptions returns the defaults used by the API server.
func DefaultOptions() Options {
	return Options{Normalization: NormalizeCosine}
}

// Request is one retrieval call.
type Request struct {
	Query      string
	Collection string
	TopK       int
	Filter     semantic.Filter
	// Vector skips embedding when the caller already has the query vector.
	Vector []float32
}

// Retriever embeds a query once and searches the index with it.
type Retriever struct {
	embedder embed.Embedder
	index    semantic.Index
	opts     Options
}

// New creates a Retriever.
func New(embedder embed.Embedder, index semantic.Index, opts Options) *Retriever {
	if opts.Normalization == "" {
		opts.Normalization = NormalizeCosine
	}
	return &Retriever{embedder: embedder, index: index, opts: opts}
}

// Embed returns the query vector, so callers running several searches for
// one query only embed it once.
func (r *Retriever) Embed(ctx context.Context, query string) ([]float32, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}
	return vec, nil
}

// Retrieve returns at most req.TopK hits ordered by score descending. A
// missing or empty collection yields no hits and no error.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]domain.RetrievalHit, error) {
	if err := domain.ValidateTopK(req.TopK); err != nil {
		return nil, err
	}
	vec := req.Vector
	if vec == nil {
		var err error
		if vec, err = r.Embed(ctx, req.Query); err != nil {
			return nil, err
		}
	}

	raw, err := r.index.Search(ctx, req.Collection, vec, req.Filter, req.TopK)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve: search %s: %w", req.Collection, err)
	}

	hits := make([]domain.RetrievalHit, 0, len(raw))
	for _, h := range raw {
		score := r.opts.Normalization.Apply(h.Score)
		if score < r.opts.MinRelevance {
			continue
		}
		hit := ToHit(h)
		hit.Score = score
		hit.Rank = score
		hits = append(hits, hit)
	}
	return hits, nil
}

// ToHit maps an index hit of either collection to a RetrievalHit. Score and
// Rank are left for the caller to fill.
func ToHit(h semantic.Hit) domain.RetrievalHit {
	p := h.Payload
	hit := domain.RetrievalHit{
		ID:         h.ID,
		Provenance: domain.ProvenanceSimilarity,
	}
	if pid := p.String(semantic.KeyPatientID); pid != "" {
		et, err := domain.ParseEntryType(p.String(semantic.KeyEntryType))
		if err != nil {
			et = domain.EntryNote
		}
		hit.Content = p.String(semantic.KeySummary)
		if hit.Content == "" {
			hit.Content = p.String(semantic.KeyRawText)
		}
		hit.Label = string(et)
		hit.Metadata = domain.HitMetadata{
			EntryType: et,
			IsChronic: p.Bool(semantic.KeyIsChronic),
			Date:      p.Time(semantic.KeyDate),
			RawText:   p.String(semantic.KeyRawText),
			PatientID: pid,
		}
		return hit
	}
	hit.Content = p.String(semantic.KeyContent)
	hit.Label = p.String(semantic.KeyCondition)
	if hit.Label == "" {
		hit.Label = "Unknown"
	}
	hit.Metadata = domain.HitMetadata{Category: p.String(semantic.KeyCategory)}
	return hit
}
