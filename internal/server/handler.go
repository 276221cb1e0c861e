package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thomas-vilte/backlog-responder/internal/auth"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/services"
)

// Pipeline runs one webhook call to completion.
type Pipeline interface {
	Handle(ctx context.Context, req services.WebhookRequest) services.Outcome
}

// Handler adapts a Pipeline to net/http.
type Handler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

func NewHandler(pipeline Pipeline, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		logger:   log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := RequestID(r)
	ctx := logger.WithLogger(r.Context(), h.logger.With("request_id", requestID))

	out := h.pipeline.Handle(ctx, services.WebhookRequest{
		Method:     r.Method,
		AuthHeader: r.Header.Get(auth.HeaderName),
		Body:       http.MaxBytesReader(w, r.Body, services.MaxBodyBytes+1),
	})

	if out.Status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", http.MethodPost)
	}
	w.Header().Set("X-Request-Id", requestID)
	WriteJSON(ctx, w, out.Status, out.Body)

	attrs := []any{
		"status", out.Status,
		"stage", out.Stage,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if out.Stage == services.StageFailed {
		attrs = append(attrs, "failed_at", out.FailedAt)
	}
	if out.Skipped {
		attrs = append(attrs, "skipped", true)
	}
	logger.Info(ctx, "webhook handled", attrs...)
}

// WriteJSON writes body as UTF-8 JSON without HTML escaping.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		logger.Error(ctx, "error writing response", err)
	}
}

// RequestID picks the trace id Cloud Run or Cloud Functions forwards, then
// X-Request-Id, and generates one otherwise.
func RequestID(r *http.Request) string {
	if trace := r.Header.Get("X-Cloud-Trace-Context"); trace != "" {
		id, _, _ := strings.Cut(trace, "/")
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	if id := strings.TrimSpace(r.Header.Get("X-Request-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}
