package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconciliationMetrics(reg)

	m.IncOutcome("webhook", "applied")
	m.IncOutcome("webhook", "applied")
	m.IncOutcome("confirm", "noop")
	m.IncDiscrepancy("order_cancelled")
	m.IncWebhook("card", "ignored")
	m.IncRestoreFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("webhook", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("confirm", "noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("order_cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("card", "ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restoreFailures))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	counter := findCounter(mfs, "orderbridge_reconciliation_discrepancies_total", "reason", "order_cancelled")
	require.NotNil(t, counter)
	assert.Equal(t, 1.0, counter.GetValue())
}

func TestReconciliationMetricsNilSafe(t *testing.T) {
	var m *ReconciliationMetrics
	m.IncOutcome("a", "b")
	m.IncDiscrepancy("c")
	m.IncWebhook("d", "e")
	m.IncRestoreFailure()

	empty := NewReconciliationMetrics(nil)
	empty.IncDiscrepancy("c")
}

func findCounter(mfs []*dto.MetricFamily, name, labelName, labelValue string) *dto.Counter {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetCounter()
				}
			}
		}
	}
	return nil
}
