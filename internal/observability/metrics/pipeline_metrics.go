// Package metrics captures duplicate-pipeline health signals.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcome labels.
const (
	OutcomeCompleted     = "completed"
	OutcomeDuplicateNoop = "duplicate_delivery"
	OutcomeOrderExists   = "order_exists"
	OutcomeQuotaDenied   = "quota_denied"
	OutcomeRetried       = "retried"
	OutcomeDead          = "dead_lettered"
)

// Side effect labels.
const (
	SideEffectTag    = "tag"
	SideEffectNotify = "notify"
	SideEffectEnrich = "enrich"
)

// PipelineMetrics exposes the detection pipeline's prometheus instruments.
type PipelineMetrics struct {
	jobOutcomes        *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	ordersFlagged      prometheus.Counter
	matchConfidence    prometheus.Histogram
	sideEffectFailures *prometheus.CounterVec
	deadLetters        *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the singleton for tests that swap the
// default registerer.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := func(c prometheus.Collector) prometheus.Collector {
		if err := registerer.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return are.ExistingCollector
			}
			panic(err)
		}
		return c
	}

	m := &PipelineMetrics{}
	m.jobOutcomes = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderguard_pipeline_job_outcomes_total",
		Help: "Processed jobs by terminal outcome.",
	}, []string{"outcome"})).(*prometheus.CounterVec)

	m.jobDuration = factory(prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderguard_pipeline_job_duration_seconds",
		Help:    "Wall time per processed job.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})).(*prometheus.HistogramVec)

	m.ordersFlagged = factory(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderguard_pipeline_orders_flagged_total",
		Help: "Orders persisted with a duplicate flag.",
	})).(prometheus.Counter)

	m.matchConfidence = factory(prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderguard_pipeline_match_confidence",
		Help:    "Confidence scores of flagged duplicates.",
		Buckets: []float64{70, 75, 80, 85, 90, 95, 100},
	})).(prometheus.Histogram)

	m.sideEffectFailures = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderguard_pipeline_side_effect_failures_total",
		Help: "Best-effort side effects (tag, notify, enrich) that failed.",
	}, []string{"effect"})).(*prometheus.CounterVec)

	m.deadLetters = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderguard_queue_dead_letters_total",
		Help: "Jobs abandoned after retry exhaustion or expiry.",
	}, []string{"queue"})).(*prometheus.CounterVec)

	m.queueDepth = factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orderguard_queue_depth",
		Help: "Jobs currently waiting or retrying per queue.",
	}, []string{"queue"})).(*prometheus.GaugeVec)

	return m
}

func (m *PipelineMetrics) IncJobOutcome(outcome string) {
	if m == nil {
		return
	}
	m.jobOutcomes.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveJobDuration(queue string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(queue).Observe(d.Seconds())
}

func (m *PipelineMetrics) IncOrderFlagged(confidence int) {
	if m == nil {
		return
	}
	m.ordersFlagged.Inc()
	m.matchConfidence.Observe(float64(confidence))
}

func (m *PipelineMetrics) IncSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

func (m *PipelineMetrics) IncDeadLetter(queue string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(queue).Inc()
}

func (m *PipelineMetrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
