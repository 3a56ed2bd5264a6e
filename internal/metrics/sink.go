package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Ingress metrics
	BatchReceived(size int)
	BatchCompleted(size int, duration time.Duration)
	EnvelopeOutcome(outcome string)

	// Dedup metrics
	DedupOutcome(outcome string)

	// Filter metrics
	FilterEvaluated(triggerType string, matched bool)

	// Projector metrics
	ScheduleProjected(action string)

	// Dispatcher metrics
	DispatchCompleted(statusClass string, duration time.Duration)
	DispatchOutcome(outcome string)
	TestSessionDiverted()

	// Janitor metrics
	JanitorSwept(target string, rows int64)
}
