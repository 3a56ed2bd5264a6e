package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSink_BatchReceived(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.BatchReceived(3)
	sink.BatchReceived(7)

	if val := getCounterValue(t, reg, "pushgate_ingress_batches_total"); val != 2 {
		t.Errorf("batches_total = %v, want 2", val)
	}
}

func TestPrometheusSink_EnvelopeOutcomeLabels(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.EnvelopeOutcome("dispatched")
	sink.EnvelopeOutcome("dispatched")
	sink.EnvelopeOutcome("skipped")

	dispatched := getCounterVecValue(t, reg, "pushgate_pipeline_envelopes_total",
		map[string]string{"outcome": "dispatched"})
	if dispatched != 2 {
		t.Errorf("outcome=dispatched = %v, want 2", dispatched)
	}

	skipped := getCounterVecValue(t, reg, "pushgate_pipeline_envelopes_total",
		map[string]string{"outcome": "skipped"})
	if skipped != 1 {
		t.Errorf("outcome=skipped = %v, want 1", skipped)
	}
}

func TestPrometheusSink_FilterEvaluated(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.FilterEvaluated("mail_received", true)
	sink.FilterEvaluated("mail_received", false)
	sink.FilterEvaluated("mail_received", true)

	matched := getCounterVecValue(t, reg, "pushgate_filter_evaluations_total",
		map[string]string{"trigger_type": "mail_received", "matched": "true"})
	if matched != 2 {
		t.Errorf("matched=true = %v, want 2", matched)
	}
}

func TestPrometheusSink_DispatchCompleted(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.DispatchCompleted("2xx", 100*time.Millisecond)
	sink.DispatchCompleted("5xx", 200*time.Millisecond)

	ok := getCounterVecValue(t, reg, "pushgate_dispatcher_requests_total",
		map[string]string{"status_class": "2xx"})
	if ok != 1 {
		t.Errorf("status_class=2xx = %v, want 1", ok)
	}
}

func TestPrometheusSink_JanitorSweptAddsRows(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.JanitorSwept("dedup", 120)
	sink.JanitorSwept("dedup", 30)

	val := getCounterVecValue(t, reg, "pushgate_janitor_rows_swept_total",
		map[string]string{"target": "dedup"})
	if val != 150 {
		t.Errorf("target=dedup = %v, want 150", val)
	}
}

func TestPrometheusSink_DuplicateRegistration_NoPanic(t *testing.T) {
	// The second registration fails for every collector but must be handled
	// gracefully.
	reg := prometheus.NewRegistry()

	if sink := NewPrometheusSink(reg); sink == nil {
		t.Fatal("first NewPrometheusSink returned nil")
	}
	if sink := NewPrometheusSink(reg); sink == nil {
		t.Fatal("second NewPrometheusSink returned nil")
	}
}

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
