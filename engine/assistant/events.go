package assistant

import (
	"context"
	"time"

	"github.com/WessleyAI/medrag/pkg/natsutil"
)

// NATS subjects.
const (
	// SubjectHistoryRecorded carries a HistoryRecorded after every stored entry.
	SubjectHistoryRecorded = "medrag.history.recorded"
	// SubjectHistoryIntake accepts HistoryIntake requests from other services.
	SubjectHistoryIntake = "medrag.history.intake"
)

// HistoryRecorded announces a stored history entry. It carries no clinical
// text, only identifiers and flags.
type HistoryRecorded struct {
	PatientID string    `json:"patient_id"`
	EntryID   string    `json:"entry_id"`
	EntryType string    `json:"entry_type"`
	IsChronic bool      `json:"is_chronic"`
	Date      time.Time `json:"date"`
}

// HistoryIntake asks for one text entry to be recorded.
type HistoryIntake struct {
	PatientID string `json:"patient_id"`
	RawText   string `json:"raw_text"`
	EntryType string `json:"entry_type,omitempty"`
}

// IntakeReply answers a HistoryIntake request.
type IntakeReply struct {
	Result *IngestResponse `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status"`
}

// EventPublisher receives domain events. Publishing is best effort.
type EventPublisher interface {
	PublishHistoryRecorded(ctx context.Context, ev HistoryRecorded) error
}

// NATSPublisher publishes events over NATS.
type NATSPublisher struct {
	nc natsutil.MsgPublisher
}

// NewNATSPublisher wraps a NATS connection.
func NewNATSPublisher(nc natsutil.MsgPublisher) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// PublishHistoryRecorded implements EventPublisher.
func (p *NATSPublisher) PublishHistoryRecorded(ctx context.Context, ev HistoryRecorded) error {
	return natsutil.Publish(ctx, p.nc, SubjectHistoryRecorded, ev)
}
