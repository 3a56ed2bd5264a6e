package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) BatchReceived(size int)                                {}
func (n *NoopSink) BatchCompleted(size int, duration time.Duration)       {}
func (n *NoopSink) EnvelopeOutcome(outcome string)                        {}
func (n *NoopSink) DedupOutcome(outcome string)                           {}
func (n *NoopSink) FilterEvaluated(triggerType string, matched bool)      {}
func (n *NoopSink) ScheduleProjected(action string)                       {}
func (n *NoopSink) DispatchCompleted(statusClass string, d time.Duration) {}
func (n *NoopSink) DispatchOutcome(outcome string)                        {}
func (n *NoopSink) TestSessionDiverted()                                  {}
func (n *NoopSink) JanitorSwept(target string, rows int64)                {}
