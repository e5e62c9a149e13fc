package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/semantic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	idx := semantic.WithSchemas(semantic.NewMemory(), semantic.DefaultSchemas())
	s := NewStore(embed.NewHashing(embed.DefaultDimension), idx, DefaultOptions(), nil)
	s.now = func() time.Time { return now }
	var n int
	s.newID = func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
	return s
}

func record(t *testing.T, s *Store, e domain.HistoryEntry) domain.HistoryEntry {
	t.Helper()
	got, err := s.Record(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return got
}

func TestRecord_FillsDefaults(t *testing.T) {
	s := newTestStore(t)
	got := record(t, s, domain.HistoryEntry{
		PatientID: " p1 ",
		RawText:   "Metformin 500mg twice daily for type 2 diabetes",
		EntryType: "Prescription",
	})
	if got.ID == "" {
		t.Fatal("expected generated id")
	}
	if got.PatientID != "p1" {
		t.Fatalf("expected trimmed patient id, got %q", got.PatientID)
	}
	if !got.Date.Equal(now) {
		t.Fatalf("expected date %v, got %v", now, got.Date)
	}
	if got.EntryType != domain.EntryPrescription {
		t.Fatalf("expected prescription, got %q", got.EntryType)
	}
	if !got.IsChronic {
		t.Fatal("expected chronic classification")
	}
	if got.StructuredSummary != "Prescription: Metformin 500mg twice daily for type 2 diabetes" {
		t.Fatalf("unexpected summary %q", got.StructuredSummary)
	}
}

func TestRecord_Validation(t *testing.T) {
	s := newTestStore(t)
	cases := []domain.HistoryEntry{
		{RawText: "no patient"},
		{PatientID: "p1"},
		{PatientID: "p1", RawText: "x", EntryType: "xray"},
	}
	for i, e := range cases {
		if _, err := s.Record(context.Background(), e); !domain.IsValidation(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestRecall_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	stored := record(t, s, domain.HistoryEntry{
		PatientID: "p1",
		RawText:   "Sprained ankle after a fall, prescribed rest and ibuprofen",
		Date:      now.Add(-10 * day),
	})

	hits, err := s.Recall(context.Background(), "p1", "ankle pain after fall", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.ID != stored.ID || h.Content != stored.StructuredSummary {
		t.Fatalf("unexpected hit %+v", h)
	}
	if h.Metadata.RawText != stored.RawText || !h.Metadata.Date.Equal(stored.Date) {
		t.Fatalf("metadata not round-tripped: %+v", h.Metadata)
	}
	if h.Provenance != domain.ProvenanceSimilarity {
		t.Fatalf("expected similarity tag, got %q", h.Provenance)
	}
}

func TestRecall_ChronicAlwaysSurfaces(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 6; i++ {
		record(t, s, domain.HistoryEntry{
			PatientID: "p1",
			RawText:   fmt.Sprintf("Twisted knee during football match number %d, knee swelling", i),
		})
	}
	chronic := record(t, s, domain.HistoryEntry{
		PatientID: "p1",
		RawText:   "Hypothyroidism managed with levothyroxine",
		Date:      now.Add(-3 * 365 * day),
	})

	hits, err := s.Recall(context.Background(), "p1", "knee swelling after football", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	var found bool
	for _, h := range hits {
		if h.ID == chronic.ID {
			found = true
			if h.Provenance != domain.ProvenanceChronicForced {
				t.Fatalf("expected chronic-forced tag, got %q", h.Provenance)
			}
		}
	}
	if !found {
		t.Fatal("chronic entry missing from recall")
	}
}

func TestRecall_PatientIsolation(t *testing.T) {
	s := newTestStore(t)
	record(t, s, domain.HistoryEntry{PatientID: "p1", RawText: "Asthma, uses inhaler daily"})
	record(t, s, domain.HistoryEntry{PatientID: "p2", RawText: "Asthma, uses inhaler daily"})
	record(t, s, domain.HistoryEntry{PatientID: "p2", RawText: "Seasonal allergies"})

	hits, err := s.Recall(context.Background(), "p1", "", 6, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected only p1's entry, got %d", len(hits))
	}
	if hits[0].Metadata.PatientID != "p1" {
		t.Fatalf("leaked entry from %q", hits[0].Metadata.PatientID)
	}
}

func TestRecall_EmptyCollection(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Recall(context.Background(), "p1", "cough", 6, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestRecall_Validation(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Recall(context.Background(), " ", "cough", 6, 0); !errors.Is(err, domain.ErrEmptyPatientID) {
		t.Fatalf("expected ErrEmptyPatientID, got %v", err)
	}
	if _, err := s.Recall(context.Background(), "p1", "cough", 0, 0); !errors.Is(err, domain.ErrInvalidTopK) {
		t.Fatalf("expected ErrInvalidTopK, got %v", err)
	}
}
