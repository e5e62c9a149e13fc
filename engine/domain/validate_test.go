package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery("I have a headache"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, q := range []string{"", "   ", "\n\t"} {
		err := ValidateQuery(q)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("ValidateQuery(%q): expected ErrEmptyQuery, got %v", q, err)
		}
		if !IsValidation(err) {
			t.Errorf("ValidateQuery(%q): expected ValidationError, got %T", q, err)
		}
	}
}

func TestValidatePatientID(t *testing.T) {
	if err := ValidatePatientID("p-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePatientID(" "); !errors.Is(err, ErrEmptyPatientID) {
		t.Fatalf("expected ErrEmptyPatientID, got %v", err)
	}
}

func TestValidateTopK(t *testing.T) {
	for _, k := range []int{0, -1} {
		if err := ValidateTopK(k); !errors.Is(err, ErrInvalidTopK) {
			t.Errorf("ValidateTopK(%d): expected ErrInvalidTopK, got %v", k, err)
		}
	}
	if err := ValidateTopK(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateHistoryEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry HistoryEntry
		want  error
	}{
		{"valid", HistoryEntry{PatientID: "p1", RawText: "metformin 500mg", EntryType: EntryPrescription}, nil},
		{"summary only", HistoryEntry{PatientID: "p1", StructuredSummary: "Note: follow-up", EntryType: EntryNote}, nil},
		{"no patient", HistoryEntry{RawText: "x"}, ErrEmptyPatientID},
		{"no text", HistoryEntry{PatientID: "p1", RawText: "  "}, ErrEmptyHistoryText},
		{"bad type", HistoryEntry{PatientID: "p1", RawText: "x", EntryType: "video"}, ErrInvalidEntryType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHistoryEntry(tt.entry)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseEntryType(t *testing.T) {
	tests := map[string]EntryType{
		"prescription": EntryPrescription,
		"AUDIO":        EntryAudio,
		"note":         EntryNote,
		"text":         EntryNote,
		"":             EntryNote,
	}
	for in, want := range tests {
		got, err := ParseEntryType(in)
		if err != nil {
			t.Fatalf("ParseEntryType(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseEntryType(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseEntryType("fax"); !errors.Is(err, ErrInvalidEntryType) {
		t.Fatalf("expected ErrInvalidEntryType, got %v", err)
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	ve := NewValidationError("query", "", ErrEmptyQuery)
	wrapped := fmt.Errorf("rag: %w", ve)
	if !errors.Is(wrapped, ErrEmptyQuery) {
		t.Fatal("expected wrapped error to match ErrEmptyQuery")
	}
	if !IsValidation(wrapped) {
		t.Fatal("expected IsValidation to see through wrapping")
	}
	if IsValidation(ErrIndexUnavailable) {
		t.Fatal("infrastructure errors are not validation errors")
	}
	want := `validation: empty query: query (value="")`
	if ve.Error() != want {
		t.Fatalf("Error() = %q, want %q", ve.Error(), want)
	}
}
