// Package history records patient history entries and recalls them with a
// two-pass, chronic-aware ranking.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/retrieve"
	"github.com/WessleyAI/medrag/engine/semantic"
	"github.com/WessleyAI/medrag/pkg/fn"
	"github.com/google/uuid"
)

// overviewQuery stands in for the symptom text when a caller asks for an
// insight without describing current symptoms.
const overviewQuery = "overall medical history, ongoing conditions and current medications"

// Options configures a Store.
type Options struct {
	Rank RankOptions
	// ChronicLimit is the minimum number of chronic entries fetched by the
	// second recall pass; the pass always fetches at least topK.
	ChronicLimit int
	// SummaryChars bounds generated summaries.
	SummaryChars  int
	Normalization retrieve.Normalization
}

// DefaultOptions returns the defaults used by the API server.
func DefaultOptions() Options {
	return Options{
		Rank:          DefaultRankOptions(),
		ChronicLimit:  20,
		SummaryChars:  DefaultSummaryChars,
		Normalization: retrieve.NormalizeCosine,
	}
}

// Store is the patient history collection.
type Store struct {
	embedder   embed.Embedder
	index      semantic.Index
	retriever  *retrieve.Retriever
	collection string
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	ensured    atomic.Bool
}

// NewStore creates a history store. Recall applies no relevance floor: the
// chronic pass must surface entries regardless of similarity.
func NewStore(embedder embed.Embedder, index semantic.Index, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SummaryChars <= 0 {
		opts.SummaryChars = DefaultSummaryChars
	}
	return &Store{
		embedder:   embedder,
		index:      index,
		retriever:  retrieve.New(embedder, index, retrieve.Options{Normalization: opts.Normalization}),
		collection: domain.HistoryCollection,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Options returns the store configuration.
func (s *Store) Options() Options { return s.opts }

// Record validates, completes and stores one entry and returns it as stored.
// A missing summary is generated, a missing date becomes now, and the chronic
// flag is set when the text mentions a chronic condition.
func (s *Store) Record(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if err := domain.ValidateHistoryEntry(entry); err != nil {
		return domain.HistoryEntry{}, err
	}
	et, _ := domain.ParseEntryType(string(entry.EntryType))
	entry.EntryType = et
	entry.PatientID = strings.TrimSpace(entry.PatientID)
	entry.RawText = strings.TrimSpace(entry.RawText)
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.Date.IsZero() {
		entry.Date = s.now()
	}
	entry.Date = entry.Date.UTC()
	if strings.TrimSpace(entry.StructuredSummary) == "" {
		entry.StructuredSummary = Summarize(entry.EntryType, entry.RawText, s.opts.SummaryChars)
	}
	if !entry.IsChronic {
		entry.IsChronic = IsChronic(entry.RawText + " " + entry.StructuredSummary)
	}

	text := entry.RawText
	if text == "" {
		text = entry.StructuredSummary
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history: embed entry: %w", err)
	}
	if err := s.ensureCollection(ctx, len(vec)); err != nil {
		return domain.HistoryEntry{}, err
	}
	rec := semantic.Record{ID: entry.ID, Vector: vec, Payload: semantic.HistoryPayload(entry)}
	if err := s.index.Upsert(ctx, s.collection, []semantic.Record{rec}); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history: store entry: %w", err)
	}

	s.logger.Info("history entry recorded",
		"patient_id", entry.PatientID,
		"entry_id", entry.ID,
		"entry_type", entry.EntryType,
		"is_chronic", entry.IsChronic,
	)
	return entry, nil
}

func (s *Store) ensureCollection(ctx context.Context, dims int) error {
	if s.ensured.Load() {
		return nil
	}
	if d := s.embedder.Dimension(); d > 0 {
		dims = d
	}
	if err := s.index.EnsureCollection(ctx, s.collection, dims); err != nil {
		return fmt.Errorf("history: ensure collection: %w", err)
	}
	s.ensured.Store(true)
	return nil
}

// Recall returns at most topK of the patient's entries ranked for the given
// symptoms. recentDays overrides the configured recency window when positive.
func (s *Store) Recall(ctx context.Context, patientID, symptoms string, topK, recentDays int) ([]domain.RetrievalHit, error) {
	if err := domain.ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	if err := domain.ValidateTopK(topK); err != nil {
		return nil, err
	}
	patientID = strings.TrimSpace(patientID)
	if strings.TrimSpace(symptoms) == "" {
		symptoms = overviewQuery
	}

	vec, err := s.retriever.Embed(ctx, symptoms)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	similar, err := s.retriever.Retrieve(ctx, retrieve.Request{
		Collection: s.collection,
		Vector:     vec,
		TopK:       topK,
		Filter:     semantic.Filter{semantic.Eq(semantic.KeyPatientID, patientID)},
	})
	if err != nil {
		return nil, fmt.Errorf("history: similarity pass: %w", err)
	}

	chronic, err := s.retriever.Retrieve(ctx, retrieve.Request{
		Collection: s.collection,
		Vector:     vec,
		TopK:       max(topK, s.opts.ChronicLimit),
		Filter: semantic.Filter{
			semantic.Eq(semantic.KeyPatientID, patientID),
			semantic.EqBool(semantic.KeyIsChronic, true),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: chronic pass: %w", err)
	}
	for i := range chronic {
		chronic[i].Provenance = domain.ProvenanceChronicForced
	}

	tagged := fn.Filter(append(similar, chronic...), func(h domain.RetrievalHit) bool {
		return h.Metadata.PatientID == patientID
	})

	opts := s.opts.Rank
	if recentDays > 0 {
		opts.RecentDays = recentDays
	}
	ranked := Rank(tagged, s.now(), opts, topK)
	s.logger.Debug("history recall",
		"patient_id", patientID,
		"similar", len(similar),
		"chronic", len(chronic),
		"returned", len(ranked),
	)
	return ranked, nil
}
