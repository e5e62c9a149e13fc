package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/WessleyAI/medrag/engine/assistant"
	"github.com/WessleyAI/medrag/pkg/mid"
)

// maxBodyBytes bounds request bodies; history text is the largest payload.
const maxBodyBytes = 1 << 20

// service is the part of *assistant.Assistant the handlers call.
type service interface {
	Health(ctx context.Context) assistant.HealthResponse
	Query(ctx context.Context, text string, topK *int) (assistant.QueryResponse, error)
	ReloadKnowledge(ctx context.Context, force bool) (assistant.ReloadResponse, error)
	IngestHistoryText(ctx context.Context, patientID, rawText, entryType string) (assistant.IngestResponse, error)
	HistoryInsight(ctx context.Context, patientID, symptoms string, topK *int) (assistant.InsightResponse, error)
}

// QueryRequest is the JSON body for POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// ReloadRequest is the optional JSON body for POST /reload-data.
type ReloadRequest struct {
	// Force defaults to true: a reload replaces the collection.
	Force *bool `json:"force,omitempty"`
}

// HistoryTextRequest is the JSON body for POST /history/text.
type HistoryTextRequest struct {
	PatientID string `json:"patient_id"`
	RawText   string `json:"raw_text"`
	EntryType string `json:"entry_type,omitempty"`
}

// InsightRequest is the JSON body for POST /history/insight.
type InsightRequest struct {
	PatientID string `json:"patient_id"`
	Symptoms  string `json:"symptoms"`
	TopK      *int   `json:"top_k,omitempty"`
}

func routes(mux *http.ServeMux, svc service, logger *slog.Logger) {
	mux.HandleFunc("GET /{$}", handleHealth(svc))
	mux.HandleFunc("GET /health", handleHealth(svc))
	mux.HandleFunc("POST /query", handleQuery(svc, logger))
	mux.HandleFunc("POST /reload-data", handleReload(svc, logger))
	mux.HandleFunc("POST /history/text", handleHistoryText(svc, logger))
	mux.HandleFunc("POST /history/insight", handleInsight(svc, logger))
}

func handleHealth(svc service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mid.WriteJSON(w, http.StatusOK, svc.Health(r.Context()))
	}
}

func handleQuery(svc service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if !decode(w, r, &req, false) {
			return
		}
		resp, err := svc.Query(r.Context(), req.Query, req.TopK)
		if err != nil {
			fail(w, logger, "query failed", err)
			return
		}
		mid.WriteJSON(w, http.StatusOK, resp)
	}
}

func handleReload(svc service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReloadRequest
		if !decode(w, r, &req, true) {
			return
		}
		force := true
		if req.Force != nil {
			force = *req.Force
		}
		resp, err := svc.ReloadKnowledge(r.Context(), force)
		if err != nil {
			fail(w, logger, "reload failed", err)
			return
		}
		mid.WriteJSON(w, http.StatusOK, resp)
	}
}

func handleHistoryText(svc service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HistoryTextRequest
		if !decode(w, r, &req, false) {
			return
		}
		resp, err := svc.IngestHistoryText(r.Context(), req.PatientID, req.RawText, req.EntryType)
		if err != nil {
			fail(w, logger, "history ingest failed", err)
			return
		}
		mid.WriteJSON(w, http.StatusOK, resp)
	}
}

func handleInsight(svc service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InsightRequest
		if !decode(w, r, &req, false) {
			return
		}
		resp, err := svc.HistoryInsight(r.Context(), req.PatientID, req.Symptoms, req.TopK)
		if err != nil {
			fail(w, logger, "history insight failed", err)
			return
		}
		mid.WriteJSON(w, http.StatusOK, resp)
	}
}

// decode reads a JSON body into v. An empty body is accepted only when
// optional is set. On failure it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		mid.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	mid.WriteError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// fail maps err onto a status. Client errors carry their message; server
// errors are logged and reported generically.
func fail(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := assistant.ErrorStatus(err)
	if status < http.StatusInternalServerError {
		mid.WriteError(w, status, err.Error())
		return
	}
	logger.Error(msg, "err", err, "status", status)
	detail := "internal server error"
	if status == http.StatusServiceUnavailable {
		detail = "service temporarily unavailable"
	}
	mid.WriteError(w, status, detail)
}
