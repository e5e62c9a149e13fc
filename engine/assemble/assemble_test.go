package assemble

import (
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
)

func ref(id, content string, rank float64) domain.RetrievalHit {
	return domain.RetrievalHit{ID: id, Content: content, Label: "X", Score: rank, Rank: rank}
}

func TestAssemble_OrdersByRank(t *testing.T) {
	block, used := Assemble([]domain.RetrievalHit{
		ref("a", "second", 0.5),
		ref("b", "first", 0.9),
	}, 0)
	want := "--- Medical Information ---\nfirst\n\n--- Medical Information ---\nsecond"
	if block != want {
		t.Fatalf("unexpected block:\n%s", block)
	}
	if len(used) != 2 || used[0].ID != "b" {
		t.Fatalf("unexpected used order %+v", used)
	}
}

func TestAssemble_SkipsNearDuplicates(t *testing.T) {
	_, used := Assemble([]domain.RetrievalHit{
		ref("a", "Drink plenty of fluids.", 0.9),
		ref("b", "drink  plenty of FLUIDS", 0.8),
		ref("c", "Rest.", 0.7),
	}, 0)
	if len(used) != 2 || used[1].ID != "c" {
		t.Fatalf("expected duplicate skipped, got %+v", used)
	}
}

func TestAssemble_StopsAtBudget(t *testing.T) {
	hits := []domain.RetrievalHit{
		ref("a", strings.Repeat("a", 40), 0.9),
		ref("b", strings.Repeat("b", 40), 0.8),
		ref("c", "c", 0.7),
	}
	one := len(Section(hits[0]))
	block, used := Assemble(hits, one+10)
	if len(used) != 1 || used[0].ID != "a" {
		t.Fatalf("expected only first hit, got %+v", used)
	}
	if block != Section(hits[0]) {
		t.Fatalf("block and used disagree:\n%s", block)
	}
}

func TestAssemble_UsedMatchesBlock(t *testing.T) {
	hits := []domain.RetrievalHit{
		ref("a", "alpha", 0.9),
		ref("b", "beta", 0.8),
		ref("c", "gamma", 0.7),
	}
	block, used := Assemble(hits, 80)
	var sections []string
	for _, h := range used {
		sections = append(sections, Section(h))
	}
	if got := strings.Join(sections, "\n\n"); got != block {
		t.Fatalf("used does not reproduce block:\n%q\n%q", got, block)
	}
	if len(block) > 80 {
		t.Fatalf("block exceeds budget: %d", len(block))
	}
}

func TestAssemble_FirstSectionTruncated(t *testing.T) {
	h := ref("a", strings.Repeat("x", 500), 0.9)
	block, used := Assemble([]domain.RetrievalHit{h}, 100)
	if len(used) != 1 {
		t.Fatalf("expected first hit kept, got %d", len(used))
	}
	if len(block) != 100 {
		t.Fatalf("expected block cut to 100 chars, got %d", len(block))
	}
}

func TestAssemble_Empty(t *testing.T) {
	block, used := Assemble(nil, 100)
	if block != "" || used != nil {
		t.Fatalf("expected empty result, got %q %v", block, used)
	}
}

func TestHeader_History(t *testing.T) {
	h := domain.RetrievalHit{Metadata: domain.HitMetadata{
		PatientID: "p1",
		EntryType: domain.EntryPrescription,
		IsChronic: true,
		Date:      time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}}
	if got := Header(h); got != "History: Prescription, 2025-03-04, chronic" {
		t.Fatalf("unexpected header %q", got)
	}
}
