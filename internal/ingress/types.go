package ingress

import "time"

// ReceiveResponse acknowledges a notification batch. The provider only cares
// about the status code; the body exists for operators and the test-mode UI.
type ReceiveResponse struct {
	Success                bool   `json:"success"`
	Empty                  bool   `json:"empty,omitempty"`
	TestSessionID          string `json:"testSessionId,omitempty"`
	ProcessingTime         string `json:"processingTime,omitempty"`
	NotificationsProcessed int    `json:"notificationsProcessed"`
}

// TestSessionResponse is the polling view of a test session.
type TestSessionResponse struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflowId"`
	Status      string `json:"status"`
	TriggerData any    `json:"triggerData,omitempty"`
	ExpiresAt   string `json:"expiresAt"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
