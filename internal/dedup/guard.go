// Package dedup collapses duplicate and re-delivered notifications through a
// globally-unique key in the processed-notification ledger.
package dedup

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/chainreact/pushgate/internal/domain"
)

// ErrDuplicateNotification is returned by Store implementations when the
// dedup key already exists (unique violation).
var ErrDuplicateNotification = errors.New("notification already processed")

type Store interface {
	// InsertDedupRecord inserts the record, returning ErrDuplicateNotification
	// when the key is already present.
	InsertDedupRecord(ctx context.Context, rec domain.DedupRecord) error
}

// MetricsSink records dedup outcomes. Methods must be non-blocking.
type MetricsSink interface {
	DedupOutcome(outcome string)
}

// Outcome labels for MetricsSink.
const (
	OutcomeFirst     = "first"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

type Guard struct {
	store   Store
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store, clock: time.Now}
}

// WithMetrics attaches a metrics sink to the guard.
func (g *Guard) WithMetrics(sink MetricsSink) *Guard {
	g.metrics = sink
	return g
}

// Key derives the dedup key for an envelope. The owner falls back to
// "unknown" when empty. For resource kinds where the provider emits multiple
// changeType deliveries for one semantic event (mail items arrive as both
// "created" and "updated"), changeType is excluded so the pair collapses;
// all other kinds keep it.
func Key(ownerID string, env domain.Envelope, kind domain.ResourceKind) string {
	if ownerID == "" {
		ownerID = "unknown"
	}
	key := ownerID + "|" + env.LogicalResourceID()
	if !collapsesChangeTypes(kind) {
		key += "|" + env.ChangeType
	}
	return key
}

// collapsesChangeTypes reports whether the kind's created/updated deliveries
// describe one semantic event.
func collapsesChangeTypes(kind domain.ResourceKind) bool {
	return kind == domain.KindMail
}

// FirstDelivery records the envelope in the ledger and reports whether this
// is the first time its key has been seen. A unique violation means the
// notification was already handled. Any other ledger error fails open:
// an unavailable ledger must never silently block triggers.
func (g *Guard) FirstDelivery(ctx context.Context, ownerID string, env domain.Envelope, kind domain.ResourceKind) bool {
	key := Key(ownerID, env, kind)
	rec := domain.DedupRecord{
		Key:       key,
		OwnerID:   ownerID,
		CreatedAt: g.clock().UTC(),
	}

	err := g.store.InsertDedupRecord(ctx, rec)
	switch {
	case err == nil:
		g.record(OutcomeFirst)
		return true
	case errors.Is(err, ErrDuplicateNotification):
		g.record(OutcomeDuplicate)
		return false
	default:
		log.Printf("dedup: ledger error for key=%s, failing open: %v", key, err)
		g.record(OutcomeError)
		return true
	}
}

func (g *Guard) record(outcome string) {
	if g.metrics != nil {
		g.metrics.DedupOutcome(outcome)
	}
}
