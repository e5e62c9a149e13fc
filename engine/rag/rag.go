// Package rag orchestrates grounded answering. A request moves through
// RETRIEVING, ASSEMBLING and GENERATING and ends SUCCEEDED, or DEGRADED when
// the language model cannot answer. Generation failures never surface as
// errors: the caller receives the retrieved snippets verbatim instead.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/WessleyAI/medrag/engine/assemble"
	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/llm"
	"github.com/WessleyAI/medrag/engine/retrieve"
	"github.com/WessleyAI/medrag/pkg/fn"
	"github.com/WessleyAI/medrag/pkg/metrics"
)

// State is a step of the answer pipeline.
type State int

const (
	StateRetrieving State = iota
	StateAssembling
	StateGenerating
	StateSucceeded
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateRetrieving:
		return "retrieving"
	case StateAssembling:
		return "assembling"
	case StateGenerating:
		return "generating"
	case StateSucceeded:
		return "succeeded"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Answer kinds, used as the "kind" label on logs and metrics.
const (
	KindQuery   = "query"
	KindInsight = "insight"
)

// Retriever searches the reference collection.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieve.Request) ([]domain.RetrievalHit, error)
}

// HistoryRecaller returns a patient's ranked history entries.
type HistoryRecaller interface {
	Recall(ctx context.Context, patientID, symptoms string, topK, recentDays int) ([]domain.RetrievalHit, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	Collection      string
	ContextMaxChars int
	GenerateTimeout time.Duration
	Temperature     float32
	MaxTokens       int
	// DegradedSnippets bounds how many sections a degraded answer shows.
	DegradedSnippets int
	// RecentDays overrides the history store's recency window when positive.
	RecentDays int
}

// DefaultOptions returns the defaults used by the API server.
func DefaultOptions() Options {
	return Options{
		Collection:       domain.ReferenceCollection,
		ContextMaxChars:  6000,
		GenerateTimeout:  60 * time.Second,
		Temperature:      llm.DefaultTemperature,
		MaxTokens:        llm.DefaultMaxTokens,
		DegradedSnippets: 3,
	}
}

// Service is the grounded answerer.
type Service struct {
	retriever Retriever
	history   HistoryRecaller
	llm       llm.Completer
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Registry
}

// New creates a Service. history may be nil when insights are not served.
func New(retriever Retriever, history HistoryRecaller, completer llm.Completer, opts Options, logger *slog.Logger, reg *metrics.Registry) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	d := DefaultOptions()
	if opts.Collection == "" {
		opts.Collection = d.Collection
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = d.GenerateTimeout
	}
	if opts.DegradedSnippets <= 0 {
		opts.DegradedSnippets = d.DegradedSnippets
	}
	return &Service{
		retriever: retriever,
		history:   history,
		llm:       completer,
		opts:      opts,
		logger:    logger,
		metrics:   reg,
	}
}

// Model names the configured completion model.
func (s *Service) Model() string { return s.llm.Model() }

// AnswerQuery answers a free-text question from the reference collection.
func (s *Service) AnswerQuery(ctx context.Context, query string, topK int) (*domain.AnswerResult, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := domain.ValidateTopK(topK); err != nil {
		return nil, err
	}

	retrieveStage := fn.Stage[string, []domain.RetrievalHit](func(ctx context.Context, q string) fn.Result[[]domain.RetrievalHit] {
		return fn.FromPair(s.retriever.Retrieve(ctx, retrieve.Request{
			Query:      q,
			Collection: s.opts.Collection,
			TopK:       topK,
		}))
	})
	return s.answer(ctx, KindQuery, query, retrieveStage, func(block string) llm.Request {
		return llm.Request{System: SystemPrompt, User: queryPrompt(block, query)}
	}, NoKnowledgeMessage)
}

// AnswerHistoryInsight summarises the patient's history in light of the
// current symptoms. Blank symptoms ask for a general overview.
func (s *Service) AnswerHistoryInsight(ctx context.Context, patientID, symptoms string, topK int) (*domain.AnswerResult, error) {
	if err := domain.ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	if err := domain.ValidateTopK(topK); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, errors.New("rag: history store not configured")
	}

	recallStage := fn.Stage[string, []domain.RetrievalHit](func(ctx context.Context, pid string) fn.Result[[]domain.RetrievalHit] {
		return fn.FromPair(s.history.Recall(ctx, pid, symptoms, topK, s.opts.RecentDays))
	})
	return s.answer(ctx, KindInsight, patientID, recallStage, func(block string) llm.Request {
		return llm.Request{System: HistorySystemPrompt, User: insightPrompt(block, symptoms)}
	}, NoHistoryMessage)
}

func (s *Service) answer(
	ctx context.Context,
	kind, input string,
	retrieveStage fn.Stage[string, []domain.RetrievalHit],
	prompt func(block string) llm.Request,
	emptyMessage string,
) (*domain.AnswerResult, error) {
	start := time.Now()
	log := s.logger.With("kind", kind)

	hits, err := runStage(ctx, s, kind, StateRetrieving, retrieveStage, input)
	if err != nil {
		s.metrics.AnswersTotal.WithLabelValues(kind, metrics.OutcomeError).Inc()
		log.Error("rag retrieval failed", "err", err)
		return nil, err
	}
	collection := s.opts.Collection
	if kind == KindInsight {
		collection = domain.HistoryCollection
	}
	s.metrics.RetrievalHits.WithLabelValues(collection).Observe(float64(len(hits)))

	if len(hits) == 0 {
		s.metrics.AnswersTotal.WithLabelValues(kind, metrics.OutcomeEmpty).Inc()
		log.Info("rag answer", "state", StateDegraded, "hits", 0, "took", time.Since(start))
		return &domain.AnswerResult{
			Text:           emptyMessage,
			Sources:        []domain.RetrievalHit{},
			Model:          s.llm.Model(),
			Degraded:       true,
			DegradedReason: "no grounding available",
		}, nil
	}

	type assembled struct {
		block string
		used  []domain.RetrievalHit
	}
	assembleStage := fn.Stage[[]domain.RetrievalHit, assembled](func(_ context.Context, hits []domain.RetrievalHit) fn.Result[assembled] {
		block, used := assemble.Assemble(hits, s.opts.ContextMaxChars)
		return fn.Ok(assembled{block: block, used: used})
	})
	ctxBlock, _ := runStage(ctx, s, kind, StateAssembling, assembleStage, hits)

	req := prompt(ctxBlock.block)
	req.Temperature = s.opts.Temperature
	req.MaxTokens = s.opts.MaxTokens
	generateStage := fn.Stage[llm.Request, *llm.Completion](func(ctx context.Context, req llm.Request) fn.Result[*llm.Completion] {
		ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
		defer cancel()
		return fn.FromPair(s.llm.Complete(ctx, req))
	})
	completion, err := runStage(ctx, s, kind, StateGenerating, generateStage, req)

	if err != nil {
		reason := llm.Reason(err)
		s.metrics.LLMCallsTotal.WithLabelValues(s.llm.Model(), "error").Inc()
		s.metrics.AnswersTotal.WithLabelValues(kind, metrics.OutcomeDegraded).Inc()
		log.Warn("rag answer", "state", StateDegraded, "reason", reason, "err", err,
			"hits", len(ctxBlock.used), "took", time.Since(start))
		return &domain.AnswerResult{
			Text:           degradedText(reason, s.snippets(ctxBlock.used)),
			Sources:        ctxBlock.used,
			Model:          s.llm.Model(),
			Degraded:       true,
			DegradedReason: reason,
		}, nil
	}

	s.metrics.LLMCallsTotal.WithLabelValues(completion.Model, "ok").Inc()
	if u := completion.Usage; u != nil {
		s.metrics.LLMTokensTotal.WithLabelValues(completion.Model, "prompt").Add(float64(u.PromptTokens))
		s.metrics.LLMTokensTotal.WithLabelValues(completion.Model, "completion").Add(float64(u.CompletionTokens))
	}
	s.metrics.AnswersTotal.WithLabelValues(kind, metrics.OutcomeAnswered).Inc()
	log.Info("rag answer", "state", StateSucceeded, "hits", len(ctxBlock.used), "model", completion.Model,
		"took", time.Since(start))
	return &domain.AnswerResult{
		Text:    completion.Text,
		Sources: ctxBlock.used,
		Model:   completion.Model,
		Usage:   completion.Usage,
	}, nil
}

func (s *Service) snippets(used []domain.RetrievalHit) []string {
	n := min(len(used), s.opts.DegradedSnippets)
	out := make([]string, 0, n)
	for _, h := range used[:n] {
		out = append(out, assemble.Section(h))
	}
	return out
}

// runStage runs one traced pipeline stage and records its duration.
func runStage[In, Out any](ctx context.Context, s *Service, kind string, st State, stage fn.Stage[In, Out], in In) (Out, error) {
	start := time.Now()
	s.logger.Debug("rag stage", "kind", kind, "state", st)
	out, err := fn.TracedStage("rag."+kind+"."+st.String(), stage).Run(ctx, in)
	metrics.Since(s.metrics.StageDuration.WithLabelValues(kind, st.String()), start)
	return out, err
}
