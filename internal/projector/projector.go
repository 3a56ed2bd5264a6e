// Package projector maintains persisted fire times for relative-time
// triggers. It only keeps schedule state correct; an external scheduler polls
// pending rows and fires them at their target time.
package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chainreact/pushgate/internal/domain"
)

// DefaultLeadMinutes is the lead time applied when minutesBefore is unset.
const DefaultLeadMinutes = 15

type Store interface {
	// UpsertScheduledTrigger inserts or revives the row for the composite key
	// (workflow, node, trigger type, event id), setting status back to pending.
	UpsertScheduledTrigger(ctx context.Context, st domain.ScheduledTrigger) error
	CancelScheduledTrigger(ctx context.Context, workflowID uuid.UUID, nodeID string, t domain.TriggerType, eventID string) error
}

// MetricsSink records projector actions.
type MetricsSink interface {
	ScheduleProjected(action string)
}

// Action labels for MetricsSink.
const (
	ActionUpserted  = "upserted"
	ActionCancelled = "cancelled"
)

// EventObservation is one observation of an external event, produced by the
// filter engine from a calendar notification.
type EventObservation struct {
	EventID string
	Start   time.Time
	Deleted bool
	Matched bool // calendar filter verdict
	Payload json.RawMessage
}

type Projector struct {
	store   Store
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func New(store Store) *Projector {
	return &Projector{store: store, clock: time.Now}
}

// WithMetrics attaches a metrics sink to the projector.
func (p *Projector) WithMetrics(sink MetricsSink) *Projector {
	p.metrics = sink
	return p
}

// WithClock overrides the time source. Only for tests.
func (p *Projector) WithClock(clock func() time.Time) *Projector {
	p.clock = clock
	return p
}

// Project transitions the schedule row for the observed event:
// create/update with a future start and a matching filter upserts a pending
// row; deletion or a filter mismatch cancels it. Re-observation of the same
// event never duplicates the row.
func (p *Projector) Project(ctx context.Context, trig domain.TriggerResource, obs EventObservation) error {
	now := p.clock().UTC()

	fireAt := obs.Start.UTC().Add(-p.leadTime(trig))
	cancel := obs.Deleted || !obs.Matched || !obs.Start.After(now)

	if cancel {
		if err := p.store.CancelScheduledTrigger(ctx, trig.WorkflowID, trig.NodeID, trig.Type, obs.EventID); err != nil {
			return fmt.Errorf("cancel schedule: %w", err)
		}
		p.record(ActionCancelled)
		log.Printf("projector: cancelled workflow=%s node=%s event=%s", trig.WorkflowID, trig.NodeID, obs.EventID)
		return nil
	}

	st := domain.ScheduledTrigger{
		ID:           uuid.New(),
		WorkflowID:   trig.WorkflowID,
		NodeID:       trig.NodeID,
		Type:         trig.Type,
		EventID:      obs.EventID,
		UserID:       trig.UserID,
		ScheduledFor: fireAt,
		Status:       domain.ScheduleStatusPending,
		Payload:      obs.Payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.store.UpsertScheduledTrigger(ctx, st); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	p.record(ActionUpserted)
	log.Printf("projector: pending workflow=%s node=%s event=%s fire_at=%s",
		trig.WorkflowID, trig.NodeID, obs.EventID, fireAt.Format(time.RFC3339))
	return nil
}

// leadTime returns the configured lead duration, defaulting when unset or
// nonsensical.
func (p *Projector) leadTime(trig domain.TriggerResource) time.Duration {
	minutes := DefaultLeadMinutes
	if trig.Config.Calendar != nil && trig.Config.Calendar.MinutesBefore > 0 {
		minutes = trig.Config.Calendar.MinutesBefore
	}
	return time.Duration(minutes) * time.Minute
}

func (p *Projector) record(action string) {
	if p.metrics != nil {
		p.metrics.ScheduleProjected(action)
	}
}
