package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "stale-intent-sweep"

	m.ObserveRun(job, nil, 250*time.Millisecond)
	m.ObserveRun(job, errors.New("boom"), 10*time.Millisecond)
	m.IncSkipped(job)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultSkipped)))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)), 0.0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	hist := findHistogram(mfs, "orderbridge_cron_job_duration_seconds", job)
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 0.26, hist.GetSampleSum(), 0.001)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", nil, time.Second)
	m.IncSkipped("job")

	unregistered := NewCronJobMetrics(nil)
	unregistered.ObserveRun("job", errors.New("x"), time.Second)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", normalizeLabel(""))
	assert.Equal(t, "outbox-retention", normalizeLabel("outbox-retention"))
}

func findHistogram(mfs []*dto.MetricFamily, name, job string) *dto.Histogram {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetHistogram()
				}
			}
		}
	}
	return nil
}

func TestConsumerMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConsumerMetrics(reg)
	m.Inc("analytics", ConsumerResultHandled)
	m.Inc("analytics", ConsumerResultHandled)
	m.Inc("analytics", ConsumerResultDuplicate)

	assert.InDelta(t, 2, testutil.ToFloat64(m.messages.WithLabelValues("analytics", "handled")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.messages.WithLabelValues("analytics", "duplicate")), 0)

	var nilMetrics *ConsumerMetrics
	nilMetrics.Inc("analytics", ConsumerResultFailed)
}
