package domain

import "time"

// DedupRecord marks a notification as processed. The key is globally unique;
// once inserted it is permanent (subject only to retention sweeps), so a
// re-delivered notification hits the constraint and is skipped.
type DedupRecord struct {
	Key       string
	OwnerID   string // owner user id, or "unknown" when unresolved
	CreatedAt time.Time
}
