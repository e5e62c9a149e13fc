// Package knowledge loads the static reference corpus into the vector index.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/semantic"
	"github.com/WessleyAI/medrag/pkg/fn"
	"golang.org/x/sync/singleflight"
)

// upsertBatch bounds the number of points sent per upsert call.
const upsertBatch = 64

// Seeder writes the reference corpus into its collection. At most one seed
// runs at a time; concurrent callers asking for the same kind of seed share
// the in-flight result.
type Seeder struct {
	index      semantic.Index
	embedder   embed.Embedder
	corpus     []domain.ReferenceDocument
	collection string
	logger     *slog.Logger

	mu    sync.Mutex
	group singleflight.Group
}

// NewSeeder creates a Seeder for the reference collection.
func NewSeeder(index semantic.Index, embedder embed.Embedder, corpus []domain.ReferenceDocument, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		index:      index,
		embedder:   embedder,
		corpus:     corpus,
		collection: domain.ReferenceCollection,
		logger:     logger,
	}
}

// CorpusSize returns the number of documents the seeder writes.
func (s *Seeder) CorpusSize() int { return len(s.corpus) }

// Seed loads the corpus when the collection is empty or force is set and
// returns the number of documents written. When the collection already holds
// documents and force is false it is a no-op returning the existing count.
//
// A forced seed overwrites the live collection by id and then prunes ids
// beyond the corpus, so readers never see an empty collection and re-seeding
// an unchanged corpus leaves the same count and ids behind.
func (s *Seeder) Seed(ctx context.Context, force bool) (int, error) {
	key := "seed"
	if force {
		key = "seed-force"
	}
	ch := s.group.DoChan(key, func() (any, error) {
		// The shared run must not die with whichever caller started it.
		return s.seed(context.WithoutCancel(ctx), force)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *Seeder) seed(ctx context.Context, force bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.index.Count(ctx, s.collection)
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound):
		existing = 0
	case err != nil:
		return 0, fmt.Errorf("knowledge: count: %w", err)
	case existing > 0 && !force:
		s.logger.Debug("knowledge already seeded", "documents", existing)
		return existing, nil
	}

	texts := fn.Map(s.corpus, func(d domain.ReferenceDocument) string { return d.Content })
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("knowledge: embed corpus: %w", err)
	}

	dims := s.embedder.Dimension()
	if dims <= 0 && len(vecs) > 0 {
		dims = len(vecs[0])
	}
	if err := s.index.EnsureCollection(ctx, s.collection, dims); err != nil {
		return 0, fmt.Errorf("knowledge: ensure collection: %w", err)
	}

	records := make([]semantic.Record, len(s.corpus))
	for i, doc := range s.corpus {
		records[i] = semantic.Record{
			ID:      strconv.Itoa(i),
			Vector:  vecs[i],
			Payload: semantic.ReferencePayload(doc),
		}
	}
	for _, batch := range fn.Chunk(records, upsertBatch) {
		if err := s.index.Upsert(ctx, s.collection, batch); err != nil {
			return 0, fmt.Errorf("knowledge: upsert: %w", err)
		}
	}

	// Ids are corpus positions, so the upsert above overwrote every live
	// point in place; only a shrunk corpus leaves a tail to prune.
	if existing > len(records) {
		stale := make([]string, 0, existing-len(records))
		for i := len(records); i < existing; i++ {
			stale = append(stale, strconv.Itoa(i))
		}
		if err := s.index.Delete(ctx, s.collection, stale); err != nil {
			return 0, fmt.Errorf("knowledge: prune: %w", err)
		}
	}

	s.logger.Info("knowledge seeded", "documents", len(records), "forced", force, "embedder", s.embedder.Name())
	return len(records), nil
}
