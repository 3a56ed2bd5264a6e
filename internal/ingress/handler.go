// Package ingress is the HTTP surface receiving provider push notifications.
// It answers the subscription validation handshake, bounds and decodes
// notification batches, and hands envelopes to the processing pipeline. The
// provider retries batches answered with an error status, so the handler
// acknowledges everything it managed to decode.
package ingress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/pipeline"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Pipeline processes a decoded notification batch.
type Pipeline interface {
	ProcessBatch(ctx context.Context, envs []domain.Envelope) pipeline.Summary
}

// SessionStore reads and completes interactive test sessions.
type SessionStore interface {
	GetTestSession(ctx context.Context, id uuid.UUID) (domain.TestSession, error)
	CompleteTestSession(ctx context.Context, id uuid.UUID, payload json.RawMessage) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MetricsSink records ingress metrics.
type MetricsSink interface {
	BatchReceived(size int)
}

type Handler struct {
	pipeline Pipeline
	sessions SessionStore
	db       HealthChecker // optional, nil = simple health only
	metrics  MetricsSink   // optional, nil = disabled
	clock    func() time.Time
}

func NewHandler(p Pipeline, sessions SessionStore) *Handler {
	return &Handler{pipeline: p, sessions: sessions, clock: time.Now}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/notifications":
		h.receive(w, r)

	case strings.HasPrefix(path, "/test-sessions/") && r.Method == http.MethodGet:
		h.getTestSession(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// receive handles the provider's notification POST and the validation
// handshake. The handshake token arrives as a query parameter on either verb
// and must be echoed verbatim as text/plain within the provider's timeout, so
// it is checked before anything touches the body.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(token)); err != nil {
			log.Printf("ingress: echo validation token: %v", err)
		}
		log.Printf("ingress: answered subscription validation handshake")
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := h.clock()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var batch domain.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		if err.Error() == "http: request body too large" {
			h.logRejected(start, http.StatusRequestEntityTooLarge, "body too large")
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.logRejected(start, http.StatusBadRequest, "invalid json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if len(batch.Value) == 0 {
		log.Printf("ingress: batch empty count=0 status=%d elapsed=%s",
			http.StatusOK, h.clock().Sub(start).Round(time.Millisecond))
		writeJSON(w, http.StatusOK, ReceiveResponse{Success: true, Empty: true})
		return
	}

	if h.metrics != nil {
		h.metrics.BatchReceived(len(batch.Value))
	}

	if sessionID := r.URL.Query().Get("testSessionId"); sessionID != "" {
		h.divertBatch(w, r, sessionID, batch)
		return
	}

	summary := h.pipeline.ProcessBatch(r.Context(), batch.Value)

	log.Printf("ingress: batch processed count=%d dispatched=%d diverted=%d scheduled=%d skipped=%d failed=%d kinds=%v status=%d elapsed=%s",
		summary.Total, summary.Dispatched, summary.Diverted, summary.Scheduled,
		summary.Skipped, summary.Failed, summary.Kinds, http.StatusAccepted,
		summary.Elapsed.Round(time.Millisecond))

	writeJSON(w, http.StatusAccepted, ReceiveResponse{
		Success:                true,
		ProcessingTime:         h.clock().Sub(start).Round(time.Millisecond).String(),
		NotificationsProcessed: summary.Total,
	})
}

// divertBatch captures the raw batch on an explicitly addressed test session,
// bypassing the production stages entirely. An unusable session falls back to
// a plain acknowledgement: the provider must not retry the batch just because
// a developer's test session expired mid-flight.
func (h *Handler) divertBatch(w http.ResponseWriter, r *http.Request, sessionID string, batch domain.Batch) {
	start := h.clock()

	id, err := uuid.Parse(sessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid test session id")
		return
	}

	captured, err := json.Marshal(map[string]any{
		"notifications": batch.Value,
		"receivedAt":    formatTime(start),
	})
	if err != nil {
		log.Printf("ingress: marshal test batch: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to capture batch")
		return
	}

	if err := h.sessions.CompleteTestSession(r.Context(), id, captured); err != nil {
		log.Printf("ingress: test session=%s capture failed, acknowledging anyway: %v", id, err)
	} else {
		log.Printf("ingress: batch count=%d captured on test session=%s", len(batch.Value), id)
	}

	writeJSON(w, http.StatusOK, ReceiveResponse{
		Success:                true,
		TestSessionID:          sessionID,
		ProcessingTime:         h.clock().Sub(start).Round(time.Millisecond).String(),
		NotificationsProcessed: len(batch.Value),
	})
}

func (h *Handler) getTestSession(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "test-sessions" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid test session id")
		return
	}

	sess, err := h.sessions.GetTestSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "test session not found")
			return
		}
		log.Printf("ingress: get test session error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load test session")
		return
	}

	resp := TestSessionResponse{
		ID:         sess.ID.String(),
		WorkflowID: sess.WorkflowID.String(),
		Status:     string(sess.Status),
		ExpiresAt:  formatTime(sess.ExpiresAt),
	}
	if len(sess.TriggerData) > 0 {
		resp.TriggerData = json.RawMessage(sess.TriggerData)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// logRejected emits the batch summary for requests that never reached the
// pipeline, so failures leave the same audit trail as successes.
func (h *Handler) logRejected(start time.Time, status int, reason string) {
	log.Printf("ingress: batch rejected count=0 status=%d reason=%q elapsed=%s",
		status, reason, h.clock().Sub(start).Round(time.Millisecond))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ingress: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
