package history

import (
	"math"
	"testing"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func hit(id string, score float64, chronic bool, age time.Duration, p domain.Provenance) domain.RetrievalHit {
	return domain.RetrievalHit{
		ID:         id,
		Score:      score,
		Rank:       score,
		Provenance: p,
		Metadata:   domain.HitMetadata{IsChronic: chronic, Date: now.Add(-age), PatientID: "p1"},
	}
}

const day = 24 * time.Hour

func TestAgePenalty(t *testing.T) {
	o := DefaultRankOptions()
	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{"undated", time.Time{}, 0},
		{"recent", now.Add(-30 * day), 0},
		{"edge of window", now.Add(-180 * day), 0},
		{"100 days over", now.Add(-280 * day), 0.05},
		{"capped", now.Add(-5000 * day), 0.3},
	}
	for _, tt := range tests {
		if got := o.AgePenalty(tt.date, now); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: penalty = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRank_ChronicBoost(t *testing.T) {
	in := []domain.RetrievalHit{
		hit("a", 0.80, false, day, domain.ProvenanceSimilarity),
		hit("b", 0.70, true, day, domain.ProvenanceSimilarity),
	}
	out := Rank(in, now, DefaultRankOptions(), 2)
	if out[0].ID != "b" {
		t.Fatalf("expected boosted chronic entry first, got %q", out[0].ID)
	}
	if math.Abs(out[0].Rank-0.85) > 1e-9 {
		t.Fatalf("expected rank 0.85, got %v", out[0].Rank)
	}
	if out[0].Score != 0.70 {
		t.Fatalf("score must stay the similarity, got %v", out[0].Score)
	}
}

func TestRank_AgeDecay(t *testing.T) {
	in := []domain.RetrievalHit{
		hit("old", 0.80, false, 400*day, domain.ProvenanceSimilarity),
		hit("new", 0.75, false, 10*day, domain.ProvenanceSimilarity),
	}
	out := Rank(in, now, DefaultRankOptions(), 2)
	if out[0].ID != "new" {
		t.Fatalf("expected recent entry first, got %q", out[0].ID)
	}
}

func TestRank_DedupePrefersSimilarityTag(t *testing.T) {
	in := []domain.RetrievalHit{
		hit("a", 0.60, true, day, domain.ProvenanceSimilarity),
		hit("a", 0.60, true, day, domain.ProvenanceChronicForced),
		hit("b", 0.50, true, day, domain.ProvenanceChronicForced),
	}
	out := Rank(in, now, DefaultRankOptions(), 5)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique hits, got %d", len(out))
	}
	if out[0].ID != "a" || out[0].Provenance != domain.ProvenanceSimilarity {
		t.Fatalf("unexpected first hit %+v", out[0])
	}
	if out[1].Provenance != domain.ProvenanceChronicForced {
		t.Fatalf("expected chronic-forced tag on b, got %q", out[1].Provenance)
	}
}

func TestRank_ReservesChronic(t *testing.T) {
	in := []domain.RetrievalHit{
		hit("s1", 0.95, false, day, domain.ProvenanceSimilarity),
		hit("s2", 0.94, false, day, domain.ProvenanceSimilarity),
		hit("s3", 0.93, false, day, domain.ProvenanceSimilarity),
		hit("c1", 0.10, true, 2000*day, domain.ProvenanceChronicForced),
	}
	out := Rank(in, now, DefaultRankOptions(), 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(out))
	}
	var found bool
	for _, h := range out {
		if h.ID == "c1" {
			found = true
		}
	}
	if !found {
		t.Fatal("chronic entry dropped by truncation")
	}
	for i := 1; i < len(out); i++ {
		if out[i].Rank > out[i-1].Rank {
			t.Fatalf("result not sorted by rank at %d", i)
		}
	}
}

func TestRank_Empty(t *testing.T) {
	if out := Rank(nil, now, DefaultRankOptions(), 3); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
	if out := Rank([]domain.RetrievalHit{hit("a", 1, false, 0, domain.ProvenanceSimilarity)}, now, DefaultRankOptions(), 0); out != nil {
		t.Fatalf("expected nil for topK 0, got %v", out)
	}
}
