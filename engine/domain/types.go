// Package domain holds the data model shared by the retrieval, history and
// answering packages, together with the error kinds they report.
package domain

import (
	"strings"
	"time"
)

// Collection names used by the assistant.
const (
	ReferenceCollection = "medical_knowledge"
	HistoryCollection   = "patient_history"
)

// ReferenceDocument is one static knowledge snippet. Its identity is its
// position in the corpus.
type ReferenceDocument struct {
	Content   string `json:"content" yaml:"content"`
	Condition string `json:"condition" yaml:"condition"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
}

// EntryType classifies where a history entry came from.
type EntryType string

const (
	EntryPrescription EntryType = "prescription"
	EntryAudio        EntryType = "audio"
	EntryNote         EntryType = "note"
)

// ParseEntryType accepts the known entry types case-insensitively. "text" is
// an alias for note; an empty string defaults to note.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prescription":
		return EntryPrescription, nil
	case "audio":
		return EntryAudio, nil
	case "note", "text", "":
		return EntryNote, nil
	}
	return "", NewValidationError("entry_type", s, ErrInvalidEntryType)
}

// Label is the human-readable name used in summaries and context headers.
func (t EntryType) Label() string {
	switch t {
	case EntryPrescription:
		return "Prescription"
	case EntryAudio:
		return "Audio transcript"
	default:
		return "Note"
	}
}

// HistoryEntry is one immutable record of a patient's history.
type HistoryEntry struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patient_id"`
	RawText           string    `json:"raw_text"`
	StructuredSummary string    `json:"summary"`
	EntryType         EntryType `json:"entry_type"`
	IsChronic         bool      `json:"is_chronic"`
	Date              time.Time `json:"date"`
}

// Provenance records which retrieval pass produced a hit.
type Provenance string

const (
	ProvenanceSimilarity    Provenance = "similarity"
	ProvenanceChronicForced Provenance = "chronic-forced"
)

// HitMetadata carries the typed payload fields a hit may expose.
type HitMetadata struct {
	Category  string    `json:"category,omitempty"`
	EntryType EntryType `json:"entry_type,omitempty"`
	IsChronic bool      `json:"is_chronic"`
	Date      time.Time `json:"date,omitzero"`
	RawText   string    `json:"raw_text,omitempty"`
	PatientID string    `json:"-"`
}

// RetrievalHit is one retrieved snippet.
//
// Score is the similarity normalised to [0,1] and is only meant for display.
// Rank is the composite relevance the hit is ordered by; for reference
// retrieval it equals Score, for history recall it includes the chronic
// boost and the age penalty.
type RetrievalHit struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Label      string      `json:"label"`
	Score      float64     `json:"score"`
	Rank       float64     `json:"rank"`
	Provenance Provenance  `json:"provenance"`
	Metadata   HitMetadata `json:"metadata"`
}

// TokenUsage reports LLM token accounting when the provider returns it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnswerResult is the outcome of one grounded-answer request.
type AnswerResult struct {
	Text           string         `json:"text"`
	Sources        []RetrievalHit `json:"sources"`
	Model          string         `json:"model"`
	Usage          *TokenUsage    `json:"usage,omitempty"`
	Degraded       bool           `json:"degraded"`
	DegradedReason string         `json:"degraded_reason,omitempty"`
}
