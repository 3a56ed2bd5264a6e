package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.BatchReceived(5)
	s.BatchCompleted(5, 100*time.Millisecond)
	s.EnvelopeOutcome("dispatched")
	s.DedupOutcome("duplicate")
	s.FilterEvaluated("mail_received", true)
	s.ScheduleProjected("upserted")
	s.DispatchCompleted("2xx", 200*time.Millisecond)
	s.DispatchOutcome("dispatched")
	s.TestSessionDiverted()
	s.JanitorSwept("dedup", 10)
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
