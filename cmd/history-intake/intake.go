package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/medrag/engine/assistant"
	"github.com/WessleyAI/medrag/pkg/natsutil"
)

type ingester interface {
	IngestHistoryText(ctx context.Context, patientID, rawText, entryType string) (assistant.IngestResponse, error)
}

// intake answers HistoryIntake requests. Requests published without a reply
// subject are still recorded.
type intake struct {
	svc    ingester
	pub    natsutil.MsgPublisher
	logger *slog.Logger
}

func (in *intake) handle(ctx context.Context, msg *nats.Msg, req assistant.HistoryIntake) error {
	resp, err := in.svc.IngestHistoryText(ctx, req.PatientID, req.RawText, req.EntryType)
	reply := assistant.IntakeReply{Status: assistant.ErrorStatus(err)}
	if err != nil {
		reply.Error = err.Error()
		in.logger.Warn("history intake rejected", "err", err, "patient_id", req.PatientID, "status", reply.Status)
	} else {
		reply.Result = &resp
		in.logger.Info("history intake stored", "patient_id", resp.PatientID, "entry_id", resp.Structured.ID)
	}
	return natsutil.Respond(ctx, in.pub, msg, reply)
}

// malformed logs failed messages and replies 400 to undecodable ones.
func (in *intake) malformed(msg *nats.Msg, err error) {
	in.logger.Warn("history intake message failed", "subject", msg.Subject, "err", err)
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if !errors.As(err, &syntax) && !errors.As(err, &typ) {
		return
	}
	_ = natsutil.Respond(context.Background(), in.pub, msg, assistant.IntakeReply{
		Status: http.StatusBadRequest,
		Error:  "invalid intake message",
	})
}
