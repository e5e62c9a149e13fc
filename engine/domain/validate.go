package domain

import (
	"strconv"
	"strings"
)

// ValidateQuery rejects blank query text.
func ValidateQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("query", text, ErrEmptyQuery)
	}
	return nil
}

// ValidatePatientID rejects blank patient ids.
func ValidatePatientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("patient_id", id, ErrEmptyPatientID)
	}
	return nil
}

// ValidateTopK rejects non-positive result counts.
func ValidateTopK(k int) error {
	if k <= 0 {
		return NewValidationError("top_k", strconv.Itoa(k), ErrInvalidTopK)
	}
	return nil
}

// ValidateHistoryEntry checks the fields an entry must carry before it is
// embedded and stored.
func ValidateHistoryEntry(e HistoryEntry) error {
	if err := ValidatePatientID(e.PatientID); err != nil {
		return err
	}
	if strings.TrimSpace(e.RawText) == "" && strings.TrimSpace(e.StructuredSummary) == "" {
		return NewValidationError("raw_text", e.RawText, ErrEmptyHistoryText)
	}
	if _, err := ParseEntryType(string(e.EntryType)); err != nil {
		return err
	}
	return nil
}
