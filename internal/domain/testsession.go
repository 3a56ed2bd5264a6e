package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TestSessionStatus string

const (
	TestSessionListening       TestSessionStatus = "listening"
	TestSessionTriggerReceived TestSessionStatus = "trigger_received"
	TestSessionFailed          TestSessionStatus = "failed"
)

// TestSession is an ephemeral capture buffer for interactively testing a
// trigger. While a session is listening, matched notifications for its
// workflow are stored here instead of being dispatched.
type TestSession struct {
	ID         uuid.UUID
	WorkflowID uuid.UUID
	UserID     uuid.UUID

	Status      TestSessionStatus
	TriggerData json.RawMessage

	CreatedAt time.Time
	ExpiresAt time.Time
}
