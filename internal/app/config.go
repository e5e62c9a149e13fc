// Package app loads configuration and wires the assistant for the binaries
// under cmd/.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	Port string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	LLMModel          string
	LLMTimeout        time.Duration
	LLMRateLimit      float64
	LLMBreakerFails   int

	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDims     int
	EmbeddingTimeout  time.Duration
	EmbeddingAPIKey   string
	EmbeddingBaseURL  string
	OllamaURL         string

	VectorMode   string
	QdrantHost   string
	QdrantPort   int
	QdrantURL    string
	QdrantAPIKey string

	HistoryRecentDays   int
	HistoryTopK         int
	HistoryChronicBoost float64
	HistoryDecayPerDay  float64
	HistoryMaxDecay     float64

	ScoreNormalization string
	MinRelevance       float64
	ContextMaxChars    int
	CorpusPath         string

	CORSOrigin   string
	RateLimitRPS float64
	NATSURL      string

	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env files into the process environment when present.
// Variables already set win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads the configuration through getenv (os.Getenv in production).
// Every malformed value is reported, not only the first.
func Load(getenv func(string) string) (Config, error) {
	e := env{get: getenv}
	cfg := Config{
		Port: e.str("PORT", "8000"),

		OpenRouterAPIKey:  e.str("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: e.str("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:          e.str("LLM_MODEL", "deepseek/deepseek-r1"),
		LLMTimeout:        e.duration("LLM_TIMEOUT", 60*time.Second),
		LLMRateLimit:      e.number("LLM_RATE_LIMIT_RPS", 5),
		LLMBreakerFails:   e.integer("LLM_BREAKER_FAILURES", 5),

		EmbeddingProvider: strings.ToLower(e.str("EMBEDDING_PROVIDER", "hashing")),
		EmbeddingModel:    e.str("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDims:     e.integer("EMBEDDING_DIMS", 768),
		EmbeddingTimeout:  e.duration("EMBEDDING_TIMEOUT", 30*time.Second),
		EmbeddingAPIKey:   e.str("EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL:  e.str("EMBEDDING_BASE_URL", ""),
		OllamaURL:         e.str("OLLAMA_URL", "http://localhost:11434"),

		VectorMode:   strings.ToLower(e.str("VECTOR_MODE", "in-memory")),
		QdrantHost:   e.str("QDRANT_HOST", "localhost"),
		QdrantPort:   e.integer("QDRANT_PORT", 6334),
		QdrantURL:    e.str("QDRANT_URL", ""),
		QdrantAPIKey: e.str("QDRANT_API_KEY", ""),

		HistoryRecentDays:   e.integer("HISTORY_RECENT_DAYS", 180),
		HistoryTopK:         e.integer("HISTORY_TOP_K", 6),
		HistoryChronicBoost: e.number("HISTORY_CHRONIC_BOOST", 0.15),
		HistoryDecayPerDay:  e.number("HISTORY_DECAY_PER_DAY", 0.0005),
		HistoryMaxDecay:     e.number("HISTORY_MAX_DECAY", 0.3),

		ScoreNormalization: e.str("SCORE_NORMALIZATION", "cosine"),
		MinRelevance:       e.number("MIN_RELEVANCE", 0),
		ContextMaxChars:    e.integer("CONTEXT_MAX_CHARS", 6000),
		CorpusPath:         e.str("KNOWLEDGE_CORPUS_PATH", ""),

		CORSOrigin:   e.str("CORS_ORIGIN", "*"),
		RateLimitRPS: e.number("RATE_LIMIT_RPS", 20),
		NATSURL:      e.str("NATS_URL", ""),

		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "json")),
	}

	switch cfg.EmbeddingProvider {
	case "hashing", "ollama", "openai":
	default:
		e.fail("EMBEDDING_PROVIDER", cfg.EmbeddingProvider, "want hashing, ollama or openai")
	}
	switch cfg.VectorMode {
	case "in-memory", "memory", "qdrant":
	default:
		e.fail("VECTOR_MODE", cfg.VectorMode, "want in-memory or qdrant")
	}
	if cfg.EmbeddingDims <= 0 {
		e.fail("EMBEDDING_DIMS", strconv.Itoa(cfg.EmbeddingDims), "must be positive")
	}
	if cfg.HistoryTopK <= 0 {
		e.fail("HISTORY_TOP_K", strconv.Itoa(cfg.HistoryTopK), "must be positive")
	}
	return cfg, errors.Join(e.errs...)
}

// QdrantAddr returns the gRPC address and whether cloud mode (TLS) applies.
// QDRANT_URL selects cloud mode; otherwise QDRANT_HOST and QDRANT_PORT are
// dialled in plaintext.
func (c Config) QdrantAddr() (addr string, cloud bool, err error) {
	if c.QdrantURL == "" {
		return net.JoinHostPort(c.QdrantHost, strconv.Itoa(c.QdrantPort)), false, nil
	}
	raw := c.QdrantURL
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false, fmt.Errorf("app: invalid QDRANT_URL %q", c.QdrantURL)
	}
	port := u.Port()
	// Cloud URLs usually name the REST port; the client speaks gRPC.
	if port == "" || port == "6333" {
		port = strconv.Itoa(c.QdrantPort)
	}
	return net.JoinHostPort(u.Hostname(), port), u.Scheme != "http", nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) fail(key, value, why string) {
	e.errs = append(e.errs, fmt.Errorf("app: %s=%q: %s", key, value, why))
}

func (e *env) integer(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "not an integer")
		return fallback
	}
	return n
}

func (e *env) number(key string, fallback float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, "not a number")
		return fallback
	}
	return f
}

// duration accepts Go durations ("45s") or bare seconds ("45").
func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "not a duration")
		return fallback
	}
	return d
}
