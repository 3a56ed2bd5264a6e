// Package janitor runs periodic retention sweeps over engine state:
// processed-notification ledger rows past retention, cancelled schedule rows,
// and listening test sessions past their expiry.
//
// Sweeps are driven by a cron expression so operators can align them with
// database maintenance windows. A sweep failure is logged and retried on the
// next fire; no sweep outcome affects notification processing.
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Store defines the retention operations the janitor needs.
type Store interface {
	DeleteDedupBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error)
	DeleteCancelledSchedulesBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error)
	ExpireTestSessions(ctx context.Context, fallbackCutoff time.Time) (int64, error)
}

// MetricsSink records sweep volumes.
type MetricsSink interface {
	JanitorSwept(target string, rows int64)
}

// Sweep target labels for MetricsSink.
const (
	TargetDedup     = "dedup"
	TargetSchedules = "schedules"
	TargetSessions  = "test_sessions"
)

// Config holds janitor configuration.
type Config struct {
	// Schedule is a five-field cron expression controlling when sweeps run.
	Schedule string

	// DedupRetention is how long processed-notification rows are kept.
	DedupRetention time.Duration

	// ScheduleRetention is how long cancelled schedule rows are kept.
	ScheduleRetention time.Duration

	// SessionTTL is how long a listening test session without a stamped
	// expiry may live before it is marked failed.
	SessionTTL time.Duration

	// BatchSize is the maximum rows deleted per table per sweep.
	BatchSize int
}

// DefaultConfig returns the default janitor configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:          "0 * * * *",
		DedupRetention:    30 * 24 * time.Hour,
		ScheduleRetention: 7 * 24 * time.Hour,
		SessionTTL:        10 * time.Minute,
		BatchSize:         500,
	}
}

type Janitor struct {
	config   Config
	store    Store
	schedule cron.Schedule
	metrics  MetricsSink // optional, nil = disabled
	clock    func() time.Time
}

// New creates a Janitor. Returns an error if the cron expression is invalid.
func New(config Config, store Store) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(config.Schedule)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		config:   config,
		store:    store,
		schedule: schedule,
		clock:    time.Now,
	}, nil
}

// WithMetrics attaches a metrics sink to the janitor.
func (j *Janitor) WithMetrics(sink MetricsSink) *Janitor {
	j.metrics = sink
	return j
}

// Run executes sweeps on the configured schedule. It blocks until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log.Printf("janitor: started (schedule=%q, dedup_retention=%s, batch=%d)",
		j.config.Schedule, j.config.DedupRetention, j.config.BatchSize)

	for {
		now := j.clock()
		next := j.schedule.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("janitor: stopped")
			return
		case <-timer.C:
			j.sweep(ctx)
		}
	}
}

// sweep executes one retention pass. Each target is independent; a failure
// on one never skips the others.
func (j *Janitor) sweep(ctx context.Context) {
	now := j.clock().UTC()

	dedupCutoff := now.Add(-j.config.DedupRetention)
	if rows, err := j.store.DeleteDedupBefore(ctx, dedupCutoff, j.config.BatchSize); err != nil {
		log.Printf("janitor: dedup sweep failed: %v", err)
	} else if rows > 0 {
		log.Printf("janitor: swept %d processed-notification rows older than %s", rows, dedupCutoff.Format(time.RFC3339))
		j.record(TargetDedup, rows)
	}

	scheduleCutoff := now.Add(-j.config.ScheduleRetention)
	if rows, err := j.store.DeleteCancelledSchedulesBefore(ctx, scheduleCutoff, j.config.BatchSize); err != nil {
		log.Printf("janitor: schedule sweep failed: %v", err)
	} else if rows > 0 {
		log.Printf("janitor: swept %d cancelled schedule rows", rows)
		j.record(TargetSchedules, rows)
	}

	sessionCutoff := now.Add(-j.config.SessionTTL)
	if rows, err := j.store.ExpireTestSessions(ctx, sessionCutoff); err != nil {
		log.Printf("janitor: test session expiry failed: %v", err)
	} else if rows > 0 {
		log.Printf("janitor: expired %d stale test sessions", rows)
		j.record(TargetSessions, rows)
	}
}

func (j *Janitor) record(target string, rows int64) {
	if j.metrics != nil {
		j.metrics.JanitorSwept(target, rows)
	}
}
