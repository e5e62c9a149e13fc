// Package assistant is the request-level facade over the grounded answerer,
// the knowledge seeder and the history store. It owns the response shapes of
// the HTTP API and the mapping of domain errors onto status codes.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/pkg/metrics"
)

// Disclaimer accompanies every history insight.
const Disclaimer = "This insight is generated from recorded history for informational purposes only. " +
	"It is not a diagnosis. Please consult a healthcare professional."

// Answerer produces grounded answers.
type Answerer interface {
	AnswerQuery(ctx context.Context, query string, topK int) (*domain.AnswerResult, error)
	AnswerHistoryInsight(ctx context.Context, patientID, symptoms string, topK int) (*domain.AnswerResult, error)
	Model() string
}

// Seeder populates the reference collection.
type Seeder interface {
	Seed(ctx context.Context, force bool) (int, error)
}

// DocumentCounter counts points of a collection.
type DocumentCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// HistoryRecorder stores history entries.
type HistoryRecorder interface {
	Record(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error)
}

// Deps are the collaborators of an Assistant. Events and Metrics are optional.
type Deps struct {
	Answerer Answerer
	Seeder   Seeder
	Counter  DocumentCounter
	History  HistoryRecorder
	Events   EventPublisher
	Metrics  *metrics.Registry
}

// Options configures an Assistant.
type Options struct {
	// DefaultTopK applies to queries that omit top_k.
	DefaultTopK int
	// HistoryTopK applies to insights that omit top_k.
	HistoryTopK int
	// SourceChars bounds source snippets in query responses.
	SourceChars int
	// OperationTimeout bounds one operation once it has been detached from
	// the caller's cancellation.
	OperationTimeout time.Duration
	// LLMEnabled is reported by Health; a disabled LLM makes every answer
	// degraded.
	LLMEnabled bool
}

// DefaultOptions returns the defaults used by the API server.
func DefaultOptions() Options {
	return Options{
		DefaultTopK:      3,
		HistoryTopK:      6,
		SourceChars:      200,
		OperationTimeout: 2 * time.Minute,
		LLMEnabled:       true,
	}
}

// Assistant is the core facade.
type Assistant struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates an Assistant.
func New(deps Deps, opts Options, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	d := DefaultOptions()
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = d.DefaultTopK
	}
	if opts.HistoryTopK <= 0 {
		opts.HistoryTopK = d.HistoryTopK
	}
	if opts.SourceChars <= 0 {
		opts.SourceChars = d.SourceChars
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = d.OperationTimeout
	}
	return &Assistant{deps: deps, opts: opts, logger: logger}
}

// detach lets in-flight upstream calls finish when the caller goes away, so
// the work is not half-applied; the result is simply discarded.
func (a *Assistant) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.opts.OperationTimeout)
}

// Health reports liveness and the size of the reference collection.
func (a *Assistant) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{Status: "healthy", LLM: "enabled"}
	if !a.opts.LLMEnabled {
		resp.Status = "degraded"
		resp.LLM = "disabled"
	}
	n, err := a.deps.Counter.Count(ctx, domain.ReferenceCollection)
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound):
	case err != nil:
		a.logger.Warn("health: count documents", "err", err)
		resp.Status = "degraded"
	default:
		resp.DocumentsLoaded = n
	}
	return resp
}

// Query answers a free-text question. A nil topK takes the default; any
// other value, zero included, is validated as given.
func (a *Assistant) Query(ctx context.Context, text string, topK *int) (QueryResponse, error) {
	k := a.opts.DefaultTopK
	if topK != nil {
		k = *topK
	}
	ctx, cancel := a.detach(ctx)
	defer cancel()

	res, err := a.deps.Answerer.AnswerQuery(ctx, text, k)
	if err != nil {
		return QueryResponse{}, err
	}
	out := QueryResponse{
		Response:       res.Text,
		Sources:        make([]Source, 0, len(res.Sources)),
		Model:          res.Model,
		Usage:          res.Usage,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
	}
	for _, h := range res.Sources {
		out.Sources = append(out.Sources, Source{
			Content:        truncate(h.Content, a.opts.SourceChars),
			Condition:      h.Label,
			RelevanceScore: h.Score,
		})
	}
	return out, nil
}

// ReloadKnowledge reseeds the reference collection. force replaces existing
// documents; otherwise a populated collection is left alone.
func (a *Assistant) ReloadKnowledge(ctx context.Context, force bool) (ReloadResponse, error) {
	ctx, cancel := a.detach(ctx)
	defer cancel()

	n, err := a.deps.Seeder.Seed(ctx, force)
	if err != nil {
		return ReloadResponse{}, err
	}
	if total, err := a.deps.Counter.Count(ctx, domain.ReferenceCollection); err == nil {
		a.deps.Metrics.KnowledgeDocuments.Set(float64(total))
	}
	return ReloadResponse{Status: "success", DocumentsAdded: n}, nil
}

// IngestHistoryText records one text entry for a patient.
func (a *Assistant) IngestHistoryText(ctx context.Context, patientID, rawText, entryType string) (IngestResponse, error) {
	ctx, cancel := a.detach(ctx)
	defer cancel()

	stored, err := a.deps.History.Record(ctx, domain.HistoryEntry{
		PatientID: patientID,
		RawText:   rawText,
		EntryType: domain.EntryType(entryType),
	})
	if err != nil {
		return IngestResponse{}, err
	}
	a.deps.Metrics.HistoryEntriesTotal.WithLabelValues(string(stored.EntryType), strconv.FormatBool(stored.IsChronic)).Inc()

	if a.deps.Events != nil {
		ev := HistoryRecorded{
			PatientID: stored.PatientID,
			EntryID:   stored.ID,
			EntryType: string(stored.EntryType),
			IsChronic: stored.IsChronic,
			Date:      stored.Date,
		}
		if err := a.deps.Events.PublishHistoryRecorded(ctx, ev); err != nil {
			a.logger.Warn("publish history event", "err", err, "patient_id", stored.PatientID)
		}
	}

	return IngestResponse{
		Status:      "success",
		PatientID:   stored.PatientID,
		StoredCount: 1,
		Structured: StructuredEntry{
			ID:        stored.ID,
			Summary:   stored.StructuredSummary,
			IsChronic: stored.IsChronic,
			Type:      string(stored.EntryType),
			Date:      stored.Date.UTC().Format(time.RFC3339),
		},
	}, nil
}

// HistoryInsight summarises a patient's history for the current symptoms.
// A nil topK takes the configured history default.
func (a *Assistant) HistoryInsight(ctx context.Context, patientID, symptoms string, topK *int) (InsightResponse, error) {
	k := a.opts.HistoryTopK
	if topK != nil {
		k = *topK
	}
	ctx, cancel := a.detach(ctx)
	defer cancel()

	res, err := a.deps.Answerer.AnswerHistoryInsight(ctx, patientID, symptoms, k)
	if err != nil {
		return InsightResponse{}, err
	}
	out := InsightResponse{
		Insight:        res.Text,
		HistoryUsed:    make([]HistoryUsed, 0, len(res.Sources)),
		Model:          res.Model,
		Usage:          res.Usage,
		Disclaimer:     Disclaimer,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
	}
	for _, h := range res.Sources {
		u := HistoryUsed{
			Summary:   h.Content,
			IsChronic: h.Metadata.IsChronic,
			Type:      string(h.Metadata.EntryType),
			Score:     h.Rank,
			RawText:   h.Metadata.RawText,
		}
		if !h.Metadata.Date.IsZero() {
			u.Date = h.Metadata.Date.UTC().Format(time.RFC3339)
		}
		out.HistoryUsed = append(out.HistoryUsed, u)
	}
	return out, nil
}

// ErrorStatus maps an operation error to an HTTP status code.
func ErrorStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// truncate cuts s to n runes and marks the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
