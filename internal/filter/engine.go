// Package filter evaluates per-trigger-type predicates against the current
// provider-side state of the changed resource. Push payloads are stubs and
// are never trusted for filtering; everything a predicate needs is
// re-fetched. A fetch required to evaluate a hard filter that fails yields an
// error (the envelope is skipped: a match cannot be confirmed); fetches that
// are purely enrichment fail open.
package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

const (
	// recentWindow is how long after creation an item still counts as new.
	recentWindow = 10 * time.Minute
	// createdModifiedTolerance: created≈modified within this counts as new
	// even when the provider reports "updated".
	createdModifiedTolerance = 60 * time.Second

	// deltaScanLimit bounds the recent-items scan when a notification names
	// only the drive root.
	deltaScanLimit = 25
	// notePageLimit bounds the recent-pages poll.
	notePageLimit = 20
)

// ProviderAPI is the slice of the provider client the engine needs.
// Satisfied by *provider.Client.
type ProviderAPI interface {
	GetMessage(ctx context.Context, userID uuid.UUID, messageID string) (provider.Message, error)
	ListMessageAttachments(ctx context.Context, userID uuid.UUID, messageID string) ([]provider.Attachment, error)
	ListMailFolders(ctx context.Context, userID uuid.UUID) ([]provider.MailFolder, error)
	GetEvent(ctx context.Context, userID uuid.UUID, eventID string) (provider.Event, error)
	GetContact(ctx context.Context, userID uuid.UUID, contactID string) (provider.Contact, error)
	GetDriveItem(ctx context.Context, userID uuid.UUID, itemID string) (provider.DriveItem, error)
	ListRecentDriveItems(ctx context.Context, userID uuid.UUID, limit int) ([]provider.DriveItem, error)
	ListTableRows(ctx context.Context, userID uuid.UUID, workbookID, tableID string) ([]provider.TableRow, error)
	ListTableColumns(ctx context.Context, userID uuid.UUID, workbookID, tableID string) ([]provider.TableColumn, error)
	GetChatMessage(ctx context.Context, userID uuid.UUID, teamID, channelID, messageID string) (provider.ChatMessage, error)
	ListNotePages(ctx context.Context, userID uuid.UUID, sectionID string, limit int) ([]provider.NotePage, error)
}

// SnapshotStore persists refreshed table row-hash snapshots.
type SnapshotStore interface {
	UpdateTableSnapshot(ctx context.Context, triggerID uuid.UUID, snap domain.TableSnapshot) error
}

// MetricsSink records filter evaluations.
type MetricsSink interface {
	FilterEvaluated(triggerType string, matched bool)
}

// EventDetail carries the observed calendar event for the schedule projector.
type EventDetail struct {
	EventID string
	Start   time.Time
	Deleted bool
}

// Verdict is the outcome of evaluating one envelope against its trigger's
// filter configuration.
type Verdict struct {
	Match   bool
	Reason  string // populated when Match is false
	Payload map[string]any
	Event   *EventDetail // populated for calendar triggers
}

func noMatch(reason string) Verdict {
	return Verdict{Match: false, Reason: reason}
}

type Engine struct {
	api       ProviderAPI
	snapshots SnapshotStore
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

func New(api ProviderAPI, snapshots SnapshotStore) *Engine {
	return &Engine{api: api, snapshots: snapshots, clock: time.Now}
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	return e
}

// WithClock overrides the time source. Only for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Evaluate runs the trigger's predicates against the envelope. Only filter
// dimensions enabled in the trigger type's capability descriptor are
// consulted. A returned error means a hard filter could not be evaluated.
func (e *Engine) Evaluate(ctx context.Context, trig domain.TriggerResource, env domain.Envelope) (Verdict, error) {
	if !trig.Config.AllowsChangeType(env.ChangeType) {
		return e.done(trig, noMatch("change type "+env.ChangeType+" not in allow-list")), nil
	}

	cap, ok := domain.CapabilityFor(trig.Type)
	if !ok {
		return e.done(trig, noMatch("unknown trigger type "+string(trig.Type))), nil
	}

	var v Verdict
	var err error

	switch trig.Type.Kind() {
	case domain.KindMail:
		v, err = e.evaluateMail(ctx, trig, env, cap)
	case domain.KindEvent:
		v, err = e.evaluateCalendar(ctx, trig, env, cap)
	case domain.KindDriveItem:
		v, err = e.evaluateFile(ctx, trig, env)
	case domain.KindTableRow:
		v, err = e.evaluateTable(ctx, trig)
	case domain.KindContact:
		v, err = e.evaluateContact(ctx, trig, env, cap)
	case domain.KindChatMessage:
		v, err = e.evaluateChat(ctx, trig, env)
	case domain.KindNotePage:
		v, err = e.evaluateNotes(ctx, trig)
	default:
		return e.done(trig, noMatch("unsupported resource kind")), nil
	}

	if err != nil {
		return Verdict{}, fmt.Errorf("evaluate %s: %w", trig.Type, err)
	}
	return e.done(trig, v), nil
}

func (e *Engine) done(trig domain.TriggerResource, v Verdict) Verdict {
	if e.metrics != nil {
		e.metrics.FilterEvaluated(string(trig.Type), v.Match)
	}
	return v
}
