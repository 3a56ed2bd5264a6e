// Package analytics keeps per-workflow trigger counters in Redis, bucketed by
// hour. Counters are best-effort observability data; callers treat write
// failures as non-fatal.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chainreact/pushgate/internal/domain"
)

// DefaultRetention is how long counter buckets live.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention, clock: time.Now}
}

// WithRetention overrides the counter bucket TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// Record increments the hourly dispatch counter for a workflow and trigger
// type.
func (s *RedisSink) Record(ctx context.Context, workflowID uuid.UUID, trigger domain.TriggerType) error {
	key := buildKey(workflowID.String(), string(trigger), s.clock())

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

func buildKey(workflowID, trigger string, t time.Time) string {
	return fmt.Sprintf("wf:%s:t:%s:%s", workflowID, trigger, hourBucket(t))
}

func hourBucket(t time.Time) string {
	return t.UTC().Format("2006010215")
}
