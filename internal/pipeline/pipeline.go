// Package pipeline folds each envelope of a batch through the processing
// stages: resolve, dedup, filter, then project or dispatch. A stage failure
// ends that envelope only, never the batch. Envelopes are processed
// sequentially so skip/continue logic and log attribution stay per-request
// simple; independent deliveries run concurrently and coordinate only
// through storage.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/filter"
	"github.com/chainreact/pushgate/internal/projector"
	"github.com/chainreact/pushgate/internal/resolver"
)

// Outcome labels for Summary and metrics.
const (
	OutcomeDispatched = "dispatched"
	OutcomeDiverted   = "diverted"
	OutcomeScheduled  = "scheduled"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

// Summary is the non-PII batch digest emitted to the execution log.
type Summary struct {
	Total      int
	Dispatched int
	Diverted   int
	Scheduled  int
	Skipped    int
	Failed     int
	// Kinds tallies resolved envelopes by resource kind.
	Kinds   map[domain.ResourceKind]int
	Elapsed time.Duration
}

type Resolver interface {
	Resolve(ctx context.Context, env domain.Envelope) (domain.TriggerResource, error)
}

type Guard interface {
	FirstDelivery(ctx context.Context, ownerID string, env domain.Envelope, kind domain.ResourceKind) bool
}

type FilterEngine interface {
	Evaluate(ctx context.Context, trig domain.TriggerResource, env domain.Envelope) (filter.Verdict, error)
}

type Projector interface {
	Project(ctx context.Context, trig domain.TriggerResource, obs projector.EventObservation) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, payload map[string]any) (bool, error)
}

// MetricsSink records pipeline outcomes. Methods must be non-blocking.
type MetricsSink interface {
	EnvelopeOutcome(outcome string)
	BatchCompleted(size int, duration time.Duration)
}

type Pipeline struct {
	resolver   Resolver
	guard      Guard
	filters    FilterEngine
	projector  Projector
	dispatcher Dispatcher
	metrics    MetricsSink // optional, nil = disabled
	clock      func() time.Time
}

func New(r Resolver, g Guard, f FilterEngine, p Projector, d Dispatcher) *Pipeline {
	return &Pipeline{
		resolver:   r,
		guard:      g,
		filters:    f,
		projector:  p,
		dispatcher: d,
		clock:      time.Now,
	}
}

// WithMetrics attaches a metrics sink to the pipeline.
func (p *Pipeline) WithMetrics(sink MetricsSink) *Pipeline {
	p.metrics = sink
	return p
}

// ProcessBatch runs every envelope through the stages in order. No envelope
// outcome ever fails the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, envs []domain.Envelope) Summary {
	start := p.clock()
	summary := Summary{Total: len(envs), Kinds: make(map[domain.ResourceKind]int)}

	for i, env := range envs {
		outcome, kind := p.processEnvelope(ctx, i, env)
		if kind != "" {
			summary.Kinds[kind]++
		}
		switch outcome {
		case OutcomeDispatched:
			summary.Dispatched++
		case OutcomeDiverted:
			summary.Diverted++
		case OutcomeScheduled:
			summary.Scheduled++
		case OutcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
		if p.metrics != nil {
			p.metrics.EnvelopeOutcome(outcome)
		}
	}

	summary.Elapsed = p.clock().Sub(start)
	if p.metrics != nil {
		p.metrics.BatchCompleted(len(envs), summary.Elapsed)
	}
	return summary
}

func (p *Pipeline) processEnvelope(ctx context.Context, idx int, env domain.Envelope) (string, domain.ResourceKind) {
	// Stage 1: resolve the owning trigger configuration.
	trig, err := p.resolver.Resolve(ctx, env)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrUnknownSubscription):
			// Expected: an orphaned provider subscription outlived its config.
			log.Printf("pipeline: envelope=%d subscription=%s unknown, skipping", idx, env.SubscriptionID)
			return OutcomeSkipped, ""
		case errors.Is(err, resolver.ErrSecretMismatch):
			log.Printf("pipeline: envelope=%d subscription=%s client state mismatch, skipping", idx, env.SubscriptionID)
			return OutcomeSkipped, ""
		default:
			log.Printf("pipeline: envelope=%d resolve error: %v", idx, err)
			return OutcomeFailed, ""
		}
	}

	kind := trig.Type.Kind()
	// Stage 2: collapse duplicate deliveries. The ledger commit precedes
	// dispatch, so a later dispatch failure is at-most-once by design.
	if !p.guard.FirstDelivery(ctx, trig.UserID.String(), env, kind) {
		log.Printf("pipeline: envelope=%d duplicate delivery, skipping", idx)
		return OutcomeSkipped, kind
	}

	// Stage 3: evaluate filters against fresh provider state.
	verdict, err := p.filters.Evaluate(ctx, trig, env)
	if err != nil {
		// A hard filter could not be evaluated; a match cannot be confirmed,
		// so the envelope cannot execute.
		log.Printf("pipeline: envelope=%d filter evaluation failed, skipping: %v", idx, err)
		return OutcomeSkipped, kind
	}

	// Stage 4a: relative-time triggers maintain schedule state instead of
	// dispatching now.
	if trig.Type == domain.TriggerCalendarEventStarting {
		return p.project(ctx, idx, trig, verdict), kind
	}

	if !verdict.Match {
		log.Printf("pipeline: envelope=%d filtered out: %s", idx, verdict.Reason)
		return OutcomeSkipped, kind
	}

	// Stage 4b: dispatch, or divert to a listening test session.
	diverted, err := p.dispatcher.Dispatch(ctx, trig, env, verdict.Payload)
	if err != nil {
		log.Printf("pipeline: envelope=%d dispatch error: %v", idx, err)
		return OutcomeFailed, kind
	}
	if diverted {
		return OutcomeDiverted, kind
	}
	return OutcomeDispatched, kind
}

func (p *Pipeline) project(ctx context.Context, idx int, trig domain.TriggerResource, verdict filter.Verdict) string {
	if verdict.Event == nil {
		log.Printf("pipeline: envelope=%d no event detail for relative-time trigger, skipping", idx)
		return OutcomeSkipped
	}

	var payload json.RawMessage
	if verdict.Payload != nil {
		if data, err := json.Marshal(verdict.Payload); err == nil {
			payload = data
		}
	}

	obs := projector.EventObservation{
		EventID: verdict.Event.EventID,
		Start:   verdict.Event.Start,
		Deleted: verdict.Event.Deleted,
		Matched: verdict.Match,
		Payload: payload,
	}

	if err := p.projector.Project(ctx, trig, obs); err != nil {
		log.Printf("pipeline: envelope=%d schedule projection failed: %v", idx, err)
		return OutcomeFailed
	}
	return OutcomeScheduled
}
