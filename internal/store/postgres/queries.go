package postgres

const queryGetTriggerBySubscription = `
SELECT
    id, user_id, workflow_id, node_id,
    trigger_type, provider, subscription_id, resource_kind,
    client_state, filter_config, table_snapshot, test_session_id,
    created_at, updated_at
FROM trigger_resources
WHERE subscription_id = $1
  AND provider = $2
  AND resource_kind = $3
`

const queryInsertDedupRecord = `
INSERT INTO processed_notifications (dedup_key, owner_id, created_at)
VALUES ($1, $2, $3)
`

const queryUpdateTableSnapshot = `
UPDATE trigger_resources
SET table_snapshot = $2, updated_at = NOW()
WHERE id = $1
`

const queryUpsertScheduledTrigger = `
INSERT INTO scheduled_triggers
    (id, workflow_id, node_id, trigger_type, event_id, user_id,
     scheduled_for, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (workflow_id, node_id, trigger_type, event_id)
DO UPDATE SET
    scheduled_for = EXCLUDED.scheduled_for,
    status        = EXCLUDED.status,
    payload       = EXCLUDED.payload,
    user_id       = EXCLUDED.user_id,
    updated_at    = EXCLUDED.updated_at
`

const queryCancelScheduledTrigger = `
UPDATE scheduled_triggers
SET status = 'cancelled', updated_at = NOW()
WHERE workflow_id = $1
  AND node_id = $2
  AND trigger_type = $3
  AND event_id = $4
  AND status = 'pending'
`

const queryGetListeningTestSession = `
SELECT id, workflow_id, user_id, status, trigger_data, created_at, expires_at
FROM trigger_test_sessions
WHERE workflow_id = $1
  AND status = 'listening'
  AND expires_at > NOW()
ORDER BY created_at DESC
LIMIT 1
`

const queryGetTestSession = `
SELECT id, workflow_id, user_id, status, trigger_data, created_at, expires_at
FROM trigger_test_sessions
WHERE id = $1
`

const queryCompleteTestSession = `
UPDATE trigger_test_sessions
SET status = 'trigger_received', trigger_data = $2
WHERE id = $1
  AND status = 'listening'
`

const queryDeleteDedupBefore = `
DELETE FROM processed_notifications
WHERE dedup_key IN (
    SELECT dedup_key FROM processed_notifications
    WHERE created_at < $1
    LIMIT $2
)
`

const queryDeleteCancelledSchedulesBefore = `
DELETE FROM scheduled_triggers
WHERE id IN (
    SELECT id FROM scheduled_triggers
    WHERE status = 'cancelled'
      AND updated_at < $1
    LIMIT $2
)
`

const queryExpireTestSessions = `
UPDATE trigger_test_sessions
SET status = 'failed'
WHERE status = 'listening'
  AND (expires_at < NOW()
       OR (expires_at IS NULL AND created_at < $1))
`
