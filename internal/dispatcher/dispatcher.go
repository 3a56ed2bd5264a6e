// Package dispatcher delivers a matched notification: either to an active
// interactive test session, or to the workflow execution API.
package dispatcher

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chainreact/pushgate/internal/domain"
)

// ErrSessionNotListening is returned by Store implementations when a test
// session completion races another delivery and the session is no longer
// listening.
var ErrSessionNotListening = errors.New("test session not listening")

type Store interface {
	GetListeningTestSession(ctx context.Context, workflowID uuid.UUID) (domain.TestSession, error)
	// CompleteTestSession stores the payload and flips the session from
	// listening to trigger_received. Implementations MUST reject sessions not
	// in listening state and return ErrSessionNotListening.
	CompleteTestSession(ctx context.Context, id uuid.UUID, payload json.RawMessage) error
}

type ExecutionSender interface {
	Send(ctx context.Context, req ExecutionRequest) ExecutionResult
}

// MetricsSink records dispatch metrics. All methods must be non-blocking.
type MetricsSink interface {
	DispatchCompleted(statusClass string, duration time.Duration)
	DispatchOutcome(outcome string)
	TestSessionDiverted()
}

// AnalyticsSink counts processed notifications per workflow.
type AnalyticsSink interface {
	Record(ctx context.Context, workflowID uuid.UUID, trigger domain.TriggerType) error
}

// Outcome labels for MetricsSink.
const (
	OutcomeDispatched = "dispatched"
	OutcomeDiverted   = "diverted"
	OutcomeFailed     = "failed"
)

type ExecutionRequest struct {
	UserID  uuid.UUID
	Payload ExecutionPayload
}

// ExecutionPayload is the normalized input posted to the execution API.
type ExecutionPayload struct {
	WorkflowID    string         `json:"workflowId"`
	TestMode      bool           `json:"testMode"`
	ExecutionMode string         `json:"executionMode"`
	SkipTriggers  bool           `json:"skipTriggers"`
	InputData     map[string]any `json:"inputData"`
}

type ExecutionResult struct {
	StatusCode int
	Body       string
	Error      error
	Duration   time.Duration
}

func (r ExecutionResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Dispatcher struct {
	store     Store
	sender    ExecutionSender
	metrics   MetricsSink   // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	clock     func() time.Time
}

func New(store Store, sender ExecutionSender) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, clock: time.Now}
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithAnalytics attaches an analytics sink to the dispatcher.
func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

// capturedTrigger is the shape stored on a test session for polling.
type capturedTrigger struct {
	WorkflowID     string         `json:"workflowId"`
	NodeID         string         `json:"nodeId"`
	TriggerType    string         `json:"triggerType"`
	SubscriptionID string         `json:"subscriptionId"`
	ChangeType     string         `json:"changeType"`
	ResourceID     string         `json:"resourceId"`
	Payload        map[string]any `json:"payload,omitempty"`
	ReceivedAt     string         `json:"receivedAt"`
}

// Dispatch delivers a matched notification. If a listening test session
// exists for the workflow, the payload is captured there instead of being
// executed, even on the production path. Reports whether the notification
// was diverted.
//
// Dispatch failures are logged and swallowed: the dedup key was committed
// before this point, so the engine is deliberately at-most-once and a failed
// dispatch never blocks sibling envelopes.
func (d *Dispatcher) Dispatch(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, payload map[string]any) (bool, error) {
	if diverted := d.divert(ctx, trig, env, payload); diverted {
		return true, nil
	}

	input := map[string]any{
		"provider":       trig.Provider,
		"subscriptionId": env.SubscriptionID,
		"resourceId":     env.LogicalResourceID(),
		"changeType":     env.ChangeType,
		"triggerType":    string(trig.Type),
		"nodeId":         trig.NodeID,
	}
	if payload != nil {
		input["payload"] = payload
	}

	req := ExecutionRequest{
		UserID: trig.UserID,
		Payload: ExecutionPayload{
			WorkflowID:    trig.WorkflowID.String(),
			TestMode:      false,
			ExecutionMode: "production",
			SkipTriggers:  false,
			InputData:     input,
		},
	}

	result := d.sender.Send(ctx, req)

	if d.metrics != nil {
		d.metrics.DispatchCompleted(statusClass(result), result.Duration)
	}

	if !result.IsSuccess() {
		log.Printf("dispatcher: workflow=%s execution failed status=%d body=%q err=%v",
			trig.WorkflowID, result.StatusCode, result.Body, result.Error)
		d.recordOutcome(OutcomeFailed)
		return false, nil
	}

	d.recordOutcome(OutcomeDispatched)
	d.writeAnalytics(ctx, trig)
	log.Printf("dispatcher: workflow=%s dispatched trigger=%s", trig.WorkflowID, trig.Type)
	return false, nil
}

// divert checks for an active listening test session and, if found, stores
// the matched payload there. Session store errors fail open to live dispatch.
func (d *Dispatcher) divert(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, payload map[string]any) bool {
	sess, err := d.store.GetListeningTestSession(ctx, trig.WorkflowID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("dispatcher: test session lookup failed for workflow=%s, dispatching live: %v", trig.WorkflowID, err)
		}
		return false
	}

	captured := capturedTrigger{
		WorkflowID:     trig.WorkflowID.String(),
		NodeID:         trig.NodeID,
		TriggerType:    string(trig.Type),
		SubscriptionID: env.SubscriptionID,
		ChangeType:     env.ChangeType,
		ResourceID:     env.LogicalResourceID(),
		Payload:        payload,
		ReceivedAt:     d.clock().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(captured)
	if err != nil {
		log.Printf("dispatcher: marshal captured trigger: %v", err)
		return false
	}

	if err := d.store.CompleteTestSession(ctx, sess.ID, data); err != nil {
		if errors.Is(err, ErrSessionNotListening) {
			// Raced another delivery; fall through to live dispatch.
			log.Printf("dispatcher: session=%s no longer listening, dispatching live", sess.ID)
			return false
		}
		log.Printf("dispatcher: complete test session %s: %v", sess.ID, err)
		return false
	}

	if d.metrics != nil {
		d.metrics.TestSessionDiverted()
	}
	d.recordOutcome(OutcomeDiverted)
	log.Printf("dispatcher: workflow=%s diverted to test session=%s", trig.WorkflowID, sess.ID)
	return true
}

// writeAnalytics counts the dispatch as a best-effort side effect.
func (d *Dispatcher) writeAnalytics(ctx context.Context, trig domain.TriggerResource) {
	if d.analytics == nil {
		return
	}
	if err := d.analytics.Record(ctx, trig.WorkflowID, trig.Type); err != nil {
		log.Printf("dispatcher: analytics write failed for workflow=%s: %v", trig.WorkflowID, err)
	}
}

func (d *Dispatcher) recordOutcome(outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchOutcome(outcome)
	}
}

// statusClass maps an execution result to a bounded-cardinality label.
func statusClass(r ExecutionResult) string {
	if r.Error != nil {
		return "error"
	}
	switch {
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return "2xx"
	case r.StatusCode >= 400 && r.StatusCode < 500:
		return "4xx"
	case r.StatusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
