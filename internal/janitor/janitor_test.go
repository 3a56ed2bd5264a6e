package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chainreact/pushgate/internal/testutil"
)

type mockStore struct {
	mu sync.Mutex

	dedupCutoff    time.Time
	dedupLimit     int
	dedupRows      int64
	dedupErr       error
	scheduleCutoff time.Time
	scheduleRows   int64
	sessionCutoff  time.Time
	sessionRows    int64
	sessionErr     error

	dedupCalls    int
	scheduleCalls int
	sessionCalls  int
}

func (m *mockStore) DeleteDedupBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedupCalls++
	m.dedupCutoff = olderThan
	m.dedupLimit = limit
	return m.dedupRows, m.dedupErr
}

func (m *mockStore) DeleteCancelledSchedulesBefore(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleCalls++
	m.scheduleCutoff = olderThan
	return m.scheduleRows, nil
}

func (m *mockStore) ExpireTestSessions(ctx context.Context, fallbackCutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCalls++
	m.sessionCutoff = fallbackCutoff
	return m.sessionRows, m.sessionErr
}

type mockMetrics struct {
	mu    sync.Mutex
	swept map[string]int64
}

func (m *mockMetrics) JanitorSwept(target string, rows int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.swept == nil {
		m.swept = make(map[string]int64)
	}
	m.swept[target] += rows
}

var sweepTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestJanitor(t *testing.T, store *mockStore, metrics *mockMetrics) *Janitor {
	t.Helper()
	cfg := DefaultConfig()
	j, err := New(cfg, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	j.clock = testutil.NewFakeClock(sweepTime).Now
	if metrics != nil {
		j.WithMetrics(metrics)
	}
	return j
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule = "every hour"
	if _, err := New(cfg, &mockStore{}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestSweep_CutoffsAndBatchSize(t *testing.T) {
	store := &mockStore{}
	j := newTestJanitor(t, store, nil)

	j.sweep(context.Background())

	wantDedup := sweepTime.Add(-30 * 24 * time.Hour)
	if !store.dedupCutoff.Equal(wantDedup) {
		t.Errorf("dedup cutoff = %v, want %v", store.dedupCutoff, wantDedup)
	}
	wantSchedule := sweepTime.Add(-7 * 24 * time.Hour)
	if !store.scheduleCutoff.Equal(wantSchedule) {
		t.Errorf("schedule cutoff = %v, want %v", store.scheduleCutoff, wantSchedule)
	}
	if store.dedupLimit != 500 {
		t.Errorf("batch limit = %d, want 500", store.dedupLimit)
	}
	if store.sessionCalls != 1 {
		t.Errorf("session expiry called %d times, want 1", store.sessionCalls)
	}
	wantSession := sweepTime.Add(-10 * time.Minute)
	if !store.sessionCutoff.Equal(wantSession) {
		t.Errorf("session fallback cutoff = %v, want %v", store.sessionCutoff, wantSession)
	}
}

func TestSweep_FailureDoesNotSkipOtherTargets(t *testing.T) {
	store := &mockStore{
		dedupErr:     errors.New("deadlock detected"),
		scheduleRows: 3,
		sessionRows:  1,
	}
	metrics := &mockMetrics{}
	j := newTestJanitor(t, store, metrics)

	j.sweep(context.Background())

	if store.scheduleCalls != 1 || store.sessionCalls != 1 {
		t.Error("a failing target must not skip the remaining sweeps")
	}
	if metrics.swept[TargetSchedules] != 3 || metrics.swept[TargetSessions] != 1 {
		t.Errorf("swept metrics = %v", metrics.swept)
	}
	if _, ok := metrics.swept[TargetDedup]; ok {
		t.Error("failed target must not record a sweep metric")
	}
}

func TestSweep_ZeroRowsRecordNothing(t *testing.T) {
	metrics := &mockMetrics{}
	j := newTestJanitor(t, &mockStore{}, metrics)

	j.sweep(context.Background())

	if len(metrics.swept) != 0 {
		t.Errorf("no-op sweep recorded metrics: %v", metrics.swept)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &mockStore{}
	j := newTestJanitor(t, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
