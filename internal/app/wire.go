package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/medrag/engine/assistant"
	"github.com/WessleyAI/medrag/engine/domain"
	"github.com/WessleyAI/medrag/engine/embed"
	"github.com/WessleyAI/medrag/engine/history"
	"github.com/WessleyAI/medrag/engine/knowledge"
	"github.com/WessleyAI/medrag/engine/llm"
	"github.com/WessleyAI/medrag/engine/rag"
	"github.com/WessleyAI/medrag/engine/retrieve"
	"github.com/WessleyAI/medrag/engine/semantic"
	"github.com/WessleyAI/medrag/pkg/metrics"
	"github.com/WessleyAI/medrag/pkg/ollama"
	"github.com/WessleyAI/medrag/pkg/resilience"
)

// App is a fully wired assistant plus the resources it owns.
type App struct {
	Assistant *assistant.Assistant
	Metrics   *metrics.Registry
	// NATS is nil unless NATS_URL is set.
	NATS *nats.Conn

	closers []func() error
}

// Close releases the vector store and NATS connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires every component from cfg. Nothing is contacted except the NATS
// server; the vector store connection is lazy.
func Build(cfg Config, logger *slog.Logger) (*App, error) {
	app := &App{Metrics: metrics.New()}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	index, closeIndex, err := NewIndex(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeIndex)

	corpus := knowledge.DefaultCorpus()
	if cfg.CorpusPath != "" {
		corpus, err = knowledge.LoadCorpusFile(cfg.CorpusPath)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	norm, err := retrieve.ParseNormalization(cfg.ScoreNormalization)
	if err != nil {
		app.Close()
		return nil, err
	}

	seeder := knowledge.NewSeeder(index, embedder, corpus, logger)
	retriever := retrieve.New(embedder, index, retrieve.Options{
		Normalization: norm,
		MinRelevance:  cfg.MinRelevance,
	})

	hopts := history.DefaultOptions()
	hopts.Normalization = norm
	hopts.Rank = history.RankOptions{
		ChronicBoost: cfg.HistoryChronicBoost,
		RecentDays:   cfg.HistoryRecentDays,
		DecayPerDay:  cfg.HistoryDecayPerDay,
		MaxDecay:     cfg.HistoryMaxDecay,
	}
	store := history.NewStore(embedder, index, hopts, logger)

	completer := NewCompleter(cfg, app.Metrics, logger)

	ropts := rag.DefaultOptions()
	ropts.ContextMaxChars = cfg.ContextMaxChars
	ropts.GenerateTimeout = cfg.LLMTimeout
	ropts.RecentDays = cfg.HistoryRecentDays
	answerer := rag.New(retriever, store, completer, ropts, logger, app.Metrics)

	deps := assistant.Deps{
		Answerer: answerer,
		Seeder:   seeder,
		Counter:  index,
		History:  store,
		Metrics:  app.Metrics,
	}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("medrag"))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("app: connect nats %s: %w", cfg.NATSURL, err)
		}
		app.NATS = nc
		app.closers = append(app.closers, func() error { return nc.Drain() })
		deps.Events = assistant.NewNATSPublisher(nc)
	}

	aopts := assistant.DefaultOptions()
	aopts.HistoryTopK = cfg.HistoryTopK
	aopts.LLMEnabled = !llm.IsDisabled(completer)
	app.Assistant = assistant.New(deps, aopts, logger)

	logger.Info("assistant wired",
		"embedder", embedder.Name(),
		"dims", embedder.Dimension(),
		"vector_mode", cfg.VectorMode,
		"llm_model", completer.Model(),
		"llm_enabled", aopts.LLMEnabled,
		"corpus_docs", seeder.CorpusSize(),
		"nats", cfg.NATSURL != "",
	)
	return app, nil
}

// NewEmbedder picks the embedding provider. Every provider is bounded by
// EMBEDDING_TIMEOUT.
func NewEmbedder(cfg Config) (embed.Embedder, error) {
	var e embed.Embedder
	switch cfg.EmbeddingProvider {
	case "hashing":
		e = embed.NewHashing(cfg.EmbeddingDims)
	case "ollama":
		e = ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDims)
	case "openai":
		key := cfg.EmbeddingAPIKey
		if key == "" {
			key = cfg.OpenRouterAPIKey
		}
		if key == "" {
			return nil, errors.New("app: EMBEDDING_PROVIDER=openai needs EMBEDDING_API_KEY")
		}
		e = embed.NewOpenAI(key, cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDims)
	default:
		return nil, fmt.Errorf("app: unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return embed.NewBounded(e, cfg.EmbeddingTimeout), nil
}

// NewIndex opens the configured vector store wrapped in payload validation.
func NewIndex(cfg Config) (semantic.Index, func() error, error) {
	noop := func() error { return nil }
	switch cfg.VectorMode {
	case "in-memory", "memory":
		return semantic.WithSchemas(semantic.NewMemory(), semantic.DefaultSchemas()), noop, nil
	case "qdrant":
		addr, cloud, err := cfg.QdrantAddr()
		if err != nil {
			return nil, nil, err
		}
		q, err := semantic.NewQdrant(semantic.QdrantConfig{Addr: addr, APIKey: cfg.QdrantAPIKey, TLS: cloud})
		if err != nil {
			return nil, nil, err
		}
		return semantic.WithSchemas(q, semantic.DefaultSchemas()), q.Close, nil
	}
	return nil, nil, fmt.Errorf("app: unknown vector mode %q", cfg.VectorMode)
}

// NewCompleter returns the guarded OpenRouter completer, or llm.Disabled
// without an API key.
func NewCompleter(cfg Config, reg *metrics.Registry, logger *slog.Logger) llm.Completer {
	if cfg.OpenRouterAPIKey == "" {
		logger.Warn("OPENROUTER_API_KEY not set; answers will be degraded")
		return llm.Disabled{ModelName: cfg.LLMModel}
	}
	inner := llm.NewOpenAI(llm.Config{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	gauge := reg.BreakerState.WithLabelValues("llm")
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.LLMBreakerFails,
		Timeout:       resilience.DefaultBreakerOpts.Timeout,
		HalfOpenMax:   resilience.DefaultBreakerOpts.HalfOpenMax,
		OnStateChange: func(from, to resilience.State) {
			gauge.Set(float64(to))
			logger.Warn("llm circuit breaker", "from", from.String(), "to", to.String())
		},
	})
	burst := max(int(cfg.LLMRateLimit), 1)
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.LLMRateLimit, Burst: burst})
	return llm.NewGuard(inner, breaker, limiter)
}

// Seed loads the knowledge base if it is empty. Failures are logged and
// the process keeps serving: queries degrade until a reload succeeds.
func (a *App) Seed(ctx context.Context, logger *slog.Logger) {
	resp, err := a.Assistant.ReloadKnowledge(ctx, false)
	if err != nil {
		logger.Error("initial knowledge seed failed", "err", err, "unavailable", errors.Is(err, domain.ErrIndexUnavailable))
		return
	}
	logger.Info("knowledge base ready", "documents_added", resp.DocumentsAdded, "status", resp.Status)
}
