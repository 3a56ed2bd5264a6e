package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Ingress metrics
	batchesTotal   prometheus.Counter
	batchSize      prometheus.Histogram
	batchDuration  prometheus.Histogram
	envelopesTotal *prometheus.CounterVec

	// Dedup metrics
	dedupOutcomesTotal *prometheus.CounterVec

	// Filter metrics
	filterEvaluationsTotal *prometheus.CounterVec

	// Projector metrics
	schedulesProjectedTotal *prometheus.CounterVec

	// Dispatcher metrics
	dispatchesTotal     *prometheus.CounterVec
	dispatchOutcomes    *prometheus.CounterVec
	dispatchDuration    prometheus.Histogram
	testDiversionsTotal prometheus.Counter

	// Janitor metrics
	janitorRowsTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initIngressMetrics(reg)
	s.initPipelineMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initJanitorMetrics(reg)
	return s
}

func (s *PrometheusSink) initIngressMetrics(reg prometheus.Registerer) {
	s.batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_ingress_batches_total",
		Help: "Total number of notification batches received.",
	})
	s.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pushgate_ingress_batch_size",
		Help:    "Number of envelopes per received batch.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
	s.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pushgate_ingress_batch_duration_seconds",
		Help:    "End-to-end processing duration per batch in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.register(reg, s.batchesTotal, "pushgate_ingress_batches_total")
	s.register(reg, s.batchSize, "pushgate_ingress_batch_size")
	s.register(reg, s.batchDuration, "pushgate_ingress_batch_duration_seconds")
}

func (s *PrometheusSink) initPipelineMetrics(reg prometheus.Registerer) {
	s.envelopesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_pipeline_envelopes_total",
		Help: "Total number of envelopes processed, by final outcome.",
	}, []string{"outcome"})

	s.dedupOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_dedup_outcomes_total",
		Help: "Total number of dedup ledger checks, by outcome.",
	}, []string{"outcome"})

	s.filterEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_filter_evaluations_total",
		Help: "Total number of filter evaluations, by trigger type and verdict.",
	}, []string{"trigger_type", "matched"})

	s.schedulesProjectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_schedules_projected_total",
		Help: "Total number of scheduled-trigger projections, by action.",
	}, []string{"action"})

	s.register(reg, s.envelopesTotal, "pushgate_pipeline_envelopes_total")
	s.register(reg, s.dedupOutcomesTotal, "pushgate_dedup_outcomes_total")
	s.register(reg, s.filterEvaluationsTotal, "pushgate_filter_evaluations_total")
	s.register(reg, s.schedulesProjectedTotal, "pushgate_schedules_projected_total")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_dispatcher_requests_total",
		Help: "Total number of execution API requests, by status class.",
	}, []string{"status_class"})

	s.dispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_dispatcher_outcomes_total",
		Help: "Total number of dispatch outcomes per matched notification.",
	}, []string{"outcome"})

	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pushgate_dispatcher_request_duration_seconds",
		Help:    "Execution API request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.testDiversionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_dispatcher_test_diversions_total",
		Help: "Total number of notifications diverted to test sessions.",
	})

	s.register(reg, s.dispatchesTotal, "pushgate_dispatcher_requests_total")
	s.register(reg, s.dispatchOutcomes, "pushgate_dispatcher_outcomes_total")
	s.register(reg, s.dispatchDuration, "pushgate_dispatcher_request_duration_seconds")
	s.register(reg, s.testDiversionsTotal, "pushgate_dispatcher_test_diversions_total")
}

func (s *PrometheusSink) initJanitorMetrics(reg prometheus.Registerer) {
	s.janitorRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushgate_janitor_rows_swept_total",
		Help: "Total number of rows removed or expired by retention sweeps.",
	}, []string{"target"})

	s.register(reg, s.janitorRowsTotal, "pushgate_janitor_rows_swept_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Ingress metrics implementation

func (s *PrometheusSink) BatchReceived(size int) {
	s.batchesTotal.Inc()
	s.batchSize.Observe(float64(size))
}

func (s *PrometheusSink) BatchCompleted(size int, duration time.Duration) {
	s.batchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) EnvelopeOutcome(outcome string) {
	s.envelopesTotal.WithLabelValues(outcome).Inc()
}

// Dedup metrics implementation

func (s *PrometheusSink) DedupOutcome(outcome string) {
	s.dedupOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Filter metrics implementation

func (s *PrometheusSink) FilterEvaluated(triggerType string, matched bool) {
	s.filterEvaluationsTotal.WithLabelValues(triggerType, strconv.FormatBool(matched)).Inc()
}

// Projector metrics implementation

func (s *PrometheusSink) ScheduleProjected(action string) {
	s.schedulesProjectedTotal.WithLabelValues(action).Inc()
}

// Dispatcher metrics implementation

func (s *PrometheusSink) DispatchCompleted(statusClass string, duration time.Duration) {
	s.dispatchesTotal.WithLabelValues(statusClass).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchOutcome(outcome string) {
	s.dispatchOutcomes.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) TestSessionDiverted() {
	s.testDiversionsTotal.Inc()
}

// Janitor metrics implementation

func (s *PrometheusSink) JanitorSwept(target string, rows int64) {
	s.janitorRowsTotal.WithLabelValues(target).Add(float64(rows))
}
