package assistant

import "github.com/WessleyAI/medrag/engine/domain"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	DocumentsLoaded int    `json:"documents_loaded"`
	LLM             string `json:"llm"`
}

// Source is one reference snippet backing an answer.
type Source struct {
	Content        string  `json:"content"`
	Condition      string  `json:"condition"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QueryResponse is the body of POST /query.
type QueryResponse struct {
	Response       string             `json:"response"`
	Sources        []Source           `json:"sources"`
	Model          string             `json:"model"`
	Usage          *domain.TokenUsage `json:"usage,omitempty"`
	Degraded       bool               `json:"degraded"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
}

// ReloadResponse is the body of POST /reload-data.
type ReloadResponse struct {
	Status         string `json:"status"`
	DocumentsAdded int    `json:"documents_added"`
}

// StructuredEntry is the stored view of one history entry.
type StructuredEntry struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	IsChronic bool   `json:"is_chronic"`
	Type      string `json:"type"`
	Date      string `json:"date"`
}

// IngestResponse is the body of POST /history/text.
type IngestResponse struct {
	Status      string          `json:"status"`
	PatientID   string          `json:"patient_id"`
	StoredCount int             `json:"stored_count"`
	Structured  StructuredEntry `json:"structured"`
}

// HistoryUsed is one history entry that grounded an insight.
type HistoryUsed struct {
	Summary   string  `json:"summary"`
	Date      string  `json:"date,omitempty"`
	IsChronic bool    `json:"is_chronic"`
	Type      string  `json:"type,omitempty"`
	Score     float64 `json:"score"`
	RawText   string  `json:"raw_text,omitempty"`
}

// InsightResponse is the body of POST /history/insight.
type InsightResponse struct {
	Insight        string             `json:"insight"`
	HistoryUsed    []HistoryUsed      `json:"history_used"`
	Model          string             `json:"model"`
	Usage          *domain.TokenUsage `json:"usage,omitempty"`
	Disclaimer     string             `json:"disclaimer"`
	Degraded       bool               `json:"degraded"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
}
