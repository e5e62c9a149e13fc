package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/WessleyAI/medrag/engine/domain"
)

// Memory is a volatile in-process Index using brute-force cosine similarity.
// Ties are broken by first insertion order, so results are stable across calls.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dims    int
	nextSeq uint64
	points  map[string]*memPoint
}

type memPoint struct {
	seq     uint64
	vector  []float32
	norm    float64
	payload Payload
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

// EnsureCollection implements Index.
func (m *Memory) EnsureCollection(_ context.Context, collection string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: create collection %s: %w: dims must be positive", collection, domain.ErrIndexUnavailable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[collection]; ok {
		if c.dims != dims {
			return fmt.Errorf("semantic: collection %s has %d dims, want %d: %w", collection, c.dims, dims, domain.ErrIndexUnavailable)
		}
		return nil
	}
	m.collections[collection] = &memCollection{dims: dims, points: make(map[string]*memPoint)}
	return nil
}

// Upsert implements Index. Overwriting an id keeps its original position for tie-breaking.
func (m *Memory) Upsert(_ context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return notFound(collection)
	}
	for _, r := range records {
		if len(r.Vector) != c.dims {
			return fmt.Errorf("semantic: upsert %s id=%s: %d dims, want %d: %w", collection, r.ID, len(r.Vector), c.dims, domain.ErrIndexUnavailable)
		}
	}
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		p := &memPoint{vector: vec, norm: norm(vec), payload: r.Payload.clone()}
		if old, exists := c.points[r.ID]; exists {
			p.seq = old.seq
		} else {
			p.seq = c.nextSeq
			c.nextSeq++
		}
		c.points[r.ID] = p
	}
	return nil
}

// Search implements Index.
func (m *Memory) Search(_ context.Context, collection string, vector []float32, filter Filter, topK int) ([]Hit, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, notFound(collection)
	}
	if len(vector) != c.dims {
		return nil, fmt.Errorf("semantic: search %s: %d dims, want %d: %w", collection, len(vector), c.dims, domain.ErrIndexUnavailable)
	}

	qn := norm(vector)
	type scored struct {
		id  string
		seq uint64
		s   float32
		p   Payload
	}
	candidates := make([]scored, 0, len(c.points))
	for id, pt := range c.points {
		if !matches(pt.payload, filter) {
			continue
		}
		candidates = append(candidates, scored{id: id, seq: pt.seq, s: cosine(vector, qn, pt.vector, pt.norm), p: pt.payload})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].s != candidates[j].s {
			return candidates[i].s > candidates[j].s
		}
		return candidates[i].seq < candidates[j].seq
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]Hit, len(candidates))
	for i, cd := range candidates {
		hits[i] = Hit{ID: cd.id, Score: cd.s, Payload: cd.p.clone()}
	}
	return hits, nil
}

// Count implements Index.
func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, notFound(collection)
	}
	return len(c.points), nil
}

// Delete implements Index.
func (m *Memory) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func matches(p Payload, filter Filter) bool {
	for _, cond := range filter {
		if v, ok := p[cond.Key]; !ok || v != cond.Value {
			return false
		}
	}
	return true
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float32 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (an * bn))
}
