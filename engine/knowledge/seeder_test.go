package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/semantic"
)

type countingEmbedder struct {
	embed.Embedder
	batches atomic.Int32
	delay   time.Duration
	err     error
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.EmbedBatch(ctx, texts)
}

func newSeeder(t *testing.T, emb embed.Embedder) (*Seeder, *semantic.Memory) {
	t.Helper()
	mem := semantic.NewMemory()
	idx := semantic.WithSchemas(mem, semantic.DefaultSchemas())
	return NewSeeder(idx, emb, DefaultCorpus(), nil), mem
}

func TestDefaultCorpus(t *testing.T) {
	docs := DefaultCorpus()
	if len(docs) < 15 {
		t.Fatalf("expected at least 15 documents, got %d", len(docs))
	}
	if err := ValidateCorpus(docs); err != nil {
		t.Fatalf("built-in corpus invalid: %v", err)
	}
	docs[0].Condition = "changed"
	if DefaultCorpus()[0].Condition == "changed" {
		t.Fatal("DefaultCorpus must return a copy")
	}
}

func TestSeed_EmptyThenNoop(t *testing.T) {
	s, mem := newSeeder(t, embed.NewHashing(64))
	ctx := context.Background()

	n, err := s.Seed(ctx, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != s.CorpusSize() {
		t.Fatalf("expected %d seeded, got %d", s.CorpusSize(), n)
	}

	n, err = s.Seed(ctx, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != s.CorpusSize() {
		t.Fatalf("no-op seed should report existing count, got %d", n)
	}
	if c, _ := mem.Count(ctx, domain.ReferenceCollection); c != s.CorpusSize() {
		t.Fatalf("expected %d points, got %d", s.CorpusSize(), c)
	}
}

func TestSeed_ForceIsIdempotent(t *testing.T) {
	s, mem := newSeeder(t, embed.NewHashing(64))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		n, err := s.Seed(ctx, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != s.CorpusSize() {
			t.Fatalf("run %d: expected %d, got %d", i, s.CorpusSize(), n)
		}
	}
	if c, _ := mem.Count(ctx, domain.ReferenceCollection); c != s.CorpusSize() {
		t.Fatalf("expected %d points after forced reloads, got %d", s.CorpusSize(), c)
	}
	hits, err := mem.Search(ctx, domain.ReferenceCollection, make([]float32, 64), nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits[0].ID != "0" {
		t.Fatalf("expected position ids, got %q", hits[0].ID)
	}
}

func TestSeed_ForceShrinksCorpus(t *testing.T) {
	ctx := context.Background()
	mem := semantic.NewMemory()
	emb := embed.NewHashing(32)
	if _, err := NewSeeder(mem, emb, DefaultCorpus(), nil).Seed(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	small := DefaultCorpus()[:2]
	if _, err := NewSeeder(mem, emb, small, nil).Seed(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, _ := mem.Count(ctx, domain.ReferenceCollection); c != 2 {
		t.Fatalf("expected no orphans after shrinking, got %d points", c)
	}
}

func TestSeed_EmbedFailureKeepsData(t *testing.T) {
	ctx := context.Background()
	mem := semantic.NewMemory()
	good := embed.NewHashing(32)
	if _, err := NewSeeder(mem, good, DefaultCorpus(), nil).Seed(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &countingEmbedder{Embedder: good, err: domain.ErrEmbeddingUnavailable}
	_, err := NewSeeder(mem, bad, DefaultCorpus(), nil).Seed(ctx, true)
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if c, _ := mem.Count(ctx, domain.ReferenceCollection); c != len(DefaultCorpus()) {
		t.Fatalf("failed reload must not wipe data, got %d points", c)
	}
}

func TestSeed_ConcurrentCallsShareOneRun(t *testing.T) {
	emb := &countingEmbedder{Embedder: embed.NewHashing(32), delay: 50 * time.Millisecond}
	s, _ := newSeeder(t, emb)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Seed(context.Background(), false); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := emb.batches.Load(); got != 1 {
		t.Fatalf("expected a single embedding pass, got %d", got)
	}
}

func TestSeed_ForcedReloadNeverEmptiesCollection(t *testing.T) {
	emb := &countingEmbedder{Embedder: embed.NewHashing(32), delay: 5 * time.Millisecond}
	s, mem := newSeeder(t, emb)
	ctx := context.Background()
	if _, err := s.Seed(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := s.CorpusSize()
	query, _ := embed.NewHashing(32).Embed(ctx, "fever and cough")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 10; i++ {
			if _, err := s.Seed(ctx, true); err != nil {
				t.Errorf("reload %d: %v", i, err)
				return
			}
		}
	}()

	errs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			n, err := mem.Count(ctx, domain.ReferenceCollection)
			if err != nil || n != want {
				errs <- fmt.Errorf("count during reload: n=%d err=%v", n, err)
				return
			}
			hits, err := mem.Search(ctx, domain.ReferenceCollection, query, nil, 3)
			if err != nil || len(hits) != 3 {
				errs <- fmt.Errorf("search during reload: %d hits, err=%v", len(hits), err)
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestLoadCorpusFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.yaml")
	data := `documents:
  - condition: Migraine
    category: neurological
    content: Throbbing headache with nausea.
  - condition: Sinusitis
    content: Facial pressure and congestion.
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	docs, err := LoadCorpusFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].Category != "neurological" || docs[1].Condition != "Sinusitis" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestLoadCorpusFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"empty.yaml":        "documents: []\n",
		"no-condition.yaml": "documents:\n  - content: text only\n",
		"broken.yaml":       "documents: [\n",
	}
	for name, data := range tests {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadCorpusFile(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadCorpusFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
