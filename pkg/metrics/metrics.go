// Package metrics holds the Prometheus collectors of the assistant. A
// Registry is created per process (or per test) and handed to the components
// that record into it; nothing registers into the global default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medrag"

// Answer outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeDegraded = "degraded"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// DefaultBuckets are the latency buckets (in seconds) for pipeline stages.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Registry owns the collectors.
type Registry struct {
	reg *prometheus.Registry

	// AnswersTotal counts grounded answers by kind (query|insight) and outcome.
	AnswersTotal *prometheus.CounterVec
	// StageDuration observes each pipeline stage.
	StageDuration *prometheus.HistogramVec
	// RetrievalHits observes how many hits a retrieval returned per collection.
	RetrievalHits *prometheus.HistogramVec
	// LLMCallsTotal counts completions by model and status (ok|error).
	LLMCallsTotal *prometheus.CounterVec
	// LLMTokensTotal counts tokens by model and type (prompt|completion).
	LLMTokensTotal *prometheus.CounterVec
	// HistoryEntriesTotal counts stored history entries by type and chronic flag.
	HistoryEntriesTotal *prometheus.CounterVec
	// KnowledgeDocuments is the size of the reference collection after the last seed.
	KnowledgeDocuments prometheus.Gauge
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec
	// HTTPRequestsTotal counts served requests by method, route and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Registry with every collector registered, plus the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		AnswersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rag", Name: "answers_total",
			Help: "Grounded answers by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rag", Name: "stage_duration_seconds",
			Help: "Duration of each answer pipeline stage.", Buckets: DefaultBuckets,
		}, []string{"kind", "stage"}),
		RetrievalHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieve", Name: "hits",
			Help: "Hits returned per retrieval.", Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"collection"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "calls_total",
			Help: "Completion calls by model and status.",
		}, []string{"model", "status"}),
		LLMTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "tokens_total",
			Help: "Tokens reported by the completion upstream.",
		}, []string{"model", "type"}),
		HistoryEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "history", Name: "entries_total",
			Help: "Stored patient history entries.",
		}, []string{"entry_type", "chronic"}),
		KnowledgeDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "knowledge", Name: "documents",
			Help: "Reference documents in the knowledge collection.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "llm", Name: "breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"upstream"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: DefaultBuckets,
		}, []string{"method", "route"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.AnswersTotal,
		r.StageDuration,
		r.RetrievalHits,
		r.LLMCallsTotal,
		r.LLMTokensTotal,
		r.HistoryEntriesTotal,
		r.KnowledgeDocuments,
		r.BreakerState,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Since observes the seconds elapsed since t.
func Since(o prometheus.Observer, t time.Time) {
	o.Observe(time.Since(t).Seconds())
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, took time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
