package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %q not gathered", name)
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func TestPipelineMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newPipelineMetrics(reg)

	m.IncJobOutcome(OutcomeCompleted)
	m.IncJobOutcome(OutcomeCompleted)
	m.IncJobOutcome(OutcomeQuotaDenied)
	m.IncDeadLetter("orders-create-processing")
	m.IncSideEffectFailure(SideEffectNotify)

	outcomes := gatherFamily(t, reg, "orderguard_pipeline_job_outcomes_total")
	byOutcome := map[string]float64{}
	for _, metric := range outcomes.GetMetric() {
		byOutcome[labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, byOutcome[OutcomeCompleted])
	assert.Equal(t, 1.0, byOutcome[OutcomeQuotaDenied])

	dead := gatherFamily(t, reg, "orderguard_queue_dead_letters_total")
	require.Len(t, dead.GetMetric(), 1)
	assert.Equal(t, "orders-create-processing", labelValue(dead.GetMetric()[0], "queue"))
	assert.Equal(t, 1.0, dead.GetMetric()[0].GetCounter().GetValue())
}

func TestPipelineMetrics_FlaggedObservesConfidence(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newPipelineMetrics(reg)

	m.IncOrderFlagged(85)
	m.IncOrderFlagged(100)

	confidence := gatherFamily(t, reg, "orderguard_pipeline_match_confidence")
	require.Len(t, confidence.GetMetric(), 1)
	hist := confidence.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.Equal(t, 185.0, hist.GetSampleSum())

	flagged := gatherFamily(t, reg, "orderguard_pipeline_orders_flagged_total")
	assert.Equal(t, 2.0, flagged.GetMetric()[0].GetCounter().GetValue())
}

func TestPipelineMetrics_QueueDepthGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newPipelineMetrics(reg)

	m.SetQueueDepth("orders-create-processing", 7)
	m.SetQueueDepth("orders-create-processing", 3)

	depth := gatherFamily(t, reg, "orderguard_queue_depth")
	require.Len(t, depth.GetMetric(), 1)
	assert.Equal(t, 3.0, depth.GetMetric()[0].GetGauge().GetValue())
}

func TestPipelineMetrics_JobDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newPipelineMetrics(reg)

	m.ObserveJobDuration("orders-create-processing", 250*time.Millisecond)

	duration := gatherFamily(t, reg, "orderguard_pipeline_job_duration_seconds")
	require.Len(t, duration.GetMetric(), 1)
	assert.Equal(t, uint64(1), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPipelineMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *PipelineMetrics
	m.IncJobOutcome(OutcomeCompleted)
	m.IncOrderFlagged(90)
	m.IncDeadLetter("q")
	m.SetQueueDepth("q", 1)
}
