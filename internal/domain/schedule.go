package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// ScheduledTrigger is a persisted future fire time for a relative-time
// trigger. Keyed by (workflow, node, trigger type, event id); re-observation
// of the same event upserts the row, never duplicates it. An external
// scheduler polls pending rows and fires them.
type ScheduledTrigger struct {
	ID uuid.UUID

	WorkflowID uuid.UUID
	NodeID     string
	Type       TriggerType
	EventID    string
	UserID     uuid.UUID

	ScheduledFor time.Time
	Status       ScheduleStatus
	Payload      json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}
