package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chainreact/pushgate/internal/dedup"
	"github.com/chainreact/pushgate/internal/dispatcher"
	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/filter"
	"github.com/chainreact/pushgate/internal/projector"
	"github.com/chainreact/pushgate/internal/resolver"
)

// Store implements resolver.Store, dedup.Store, filter.SnapshotStore,
// projector.Store and dispatcher.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
// Every operation is bounded by opTimeout; zero disables the bound.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// withTimeout bounds a single database operation.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// GetTriggerBySubscription returns the trigger configuration bound to a
// provider subscription. Returns sql.ErrNoRows when no row exists.
func (s *Store) GetTriggerBySubscription(ctx context.Context, subscriptionID, providerName string, kind domain.ResourceKind) (domain.TriggerResource, error) {
	var trig domain.TriggerResource
	var configJSON, snapshotJSON []byte
	var testSessionID uuid.NullUUID

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.QueryRowContext(ctx, queryGetTriggerBySubscription, subscriptionID, providerName, string(kind)).Scan(
		&trig.ID,
		&trig.UserID,
		&trig.WorkflowID,
		&trig.NodeID,
		&trig.Type,
		&trig.Provider,
		&trig.SubscriptionID,
		&trig.Kind,
		&trig.ClientState,
		&configJSON,
		&snapshotJSON,
		&testSessionID,
		&trig.CreatedAt,
		&trig.UpdatedAt,
	)
	if err != nil {
		return domain.TriggerResource{}, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &trig.Config); err != nil {
			return domain.TriggerResource{}, fmt.Errorf("decode filter config for trigger %s: %w", trig.ID, err)
		}
	}
	if len(snapshotJSON) > 0 {
		var snap domain.TableSnapshot
		if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
			return domain.TriggerResource{}, fmt.Errorf("decode table snapshot for trigger %s: %w", trig.ID, err)
		}
		trig.Snapshot = &snap
	}
	if testSessionID.Valid {
		id := testSessionID.UUID
		trig.TestSessionID = &id
	}

	return trig, nil
}

// InsertDedupRecord inserts a processed-notification ledger row.
// Returns dedup.ErrDuplicateNotification if the key already exists.
func (s *Store) InsertDedupRecord(ctx context.Context, rec domain.DedupRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, queryInsertDedupRecord,
		rec.Key,
		rec.OwnerID,
		rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return dedup.ErrDuplicateNotification
		}
		return err
	}
	return nil
}

// UpdateTableSnapshot replaces the stored row-hash snapshot for a trigger.
func (s *Store) UpdateTableSnapshot(ctx context.Context, triggerID uuid.UUID, snap domain.TableSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode table snapshot: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, queryUpdateTableSnapshot, triggerID, data)
	return err
}

// UpsertScheduledTrigger inserts or revives the schedule row for the
// composite key (workflow, node, trigger type, event id).
func (s *Store) UpsertScheduledTrigger(ctx context.Context, st domain.ScheduledTrigger) error {
	var payload any
	if len(st.Payload) > 0 {
		payload = []byte(st.Payload)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, queryUpsertScheduledTrigger,
		st.ID,
		st.WorkflowID,
		st.NodeID,
		string(st.Type),
		st.EventID,
		st.UserID,
		st.ScheduledFor,
		string(st.Status),
		payload,
		st.CreatedAt,
		st.UpdatedAt,
	)
	return err
}

// CancelScheduledTrigger flips a pending schedule row to cancelled. Cancelling
// a row that does not exist or is already cancelled is a no-op.
func (s *Store) CancelScheduledTrigger(ctx context.Context, workflowID uuid.UUID, nodeID string, t domain.TriggerType, eventID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, queryCancelScheduledTrigger, workflowID, nodeID, string(t), eventID)
	return err
}

// GetListeningTestSession returns the newest unexpired listening session for
// a workflow. Returns sql.ErrNoRows when none is listening.
func (s *Store) GetListeningTestSession(ctx context.Context, workflowID uuid.UUID) (domain.TestSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.scanTestSession(s.db.QueryRowContext(ctx, queryGetListeningTestSession, workflowID))
}

// GetTestSession returns a session by id regardless of status.
func (s *Store) GetTestSession(ctx context.Context, id uuid.UUID) (domain.TestSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.scanTestSession(s.db.QueryRowContext(ctx, queryGetTestSession, id))
}

func (s *Store) scanTestSession(row *sql.Row) (domain.TestSession, error) {
	var sess domain.TestSession
	var data []byte
	var expiresAt sql.NullTime

	err := row.Scan(
		&sess.ID,
		&sess.WorkflowID,
		&sess.UserID,
		&sess.Status,
		&data,
		&sess.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		return domain.TestSession{}, err
	}
	if len(data) > 0 {
		sess.TriggerData = json.RawMessage(data)
	}
	if expiresAt.Valid {
		sess.ExpiresAt = expiresAt.Time
	}
	return sess, nil
}

// CompleteTestSession stores the captured payload and flips the session to
// trigger_received. Returns dispatcher.ErrSessionNotListening if the session
// left the listening state first.
// This uses an atomic UPDATE with a status guard in the WHERE clause so
// concurrent deliveries cannot both win.
func (s *Store) CompleteTestSession(ctx context.Context, id uuid.UUID, payload json.RawMessage) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, queryCompleteTestSession, id, []byte(payload))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Either the session does not exist or it already left listening;
		// both mean this delivery cannot be captured.
		return dispatcher.ErrSessionNotListening
	}
	return nil
}

// DeleteDedupBefore removes up to limit ledger rows older than the threshold.
// Returns the number of rows removed.
func (s *Store) DeleteDedupBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, queryDeleteDedupBefore, olderThan, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteCancelledSchedulesBefore removes up to limit cancelled schedule rows
// not touched since the threshold. Returns the number of rows removed.
func (s *Store) DeleteCancelledSchedulesBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, queryDeleteCancelledSchedulesBefore, olderThan, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExpireTestSessions fails every listening session past its expiry, or past
// the fallback cutoff when the registration flow never stamped an expiry.
// Returns the number of sessions expired.
func (s *Store) ExpireTestSessions(ctx context.Context, fallbackCutoff time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, queryExpireTestSessions, fallbackCutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL unique violation error code is 23505
	// Check error message for common patterns from both lib/pq and pgx
	errStr := err.Error()
	return contains(errStr, "23505") || contains(errStr, "unique constraint") || contains(errStr, "duplicate key")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Compile-time interface assertions
var (
	_ resolver.Store       = (*Store)(nil)
	_ dedup.Store          = (*Store)(nil)
	_ filter.SnapshotStore = (*Store)(nil)
	_ projector.Store      = (*Store)(nil)
	_ dispatcher.Store     = (*Store)(nil)
)
