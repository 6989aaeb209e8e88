package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics counts payment outcomes, discrepancies and webhook
// deliveries. A nil receiver is a no-op so services can run without a registry.
type ReconciliationMetrics struct {
	outcomes        *prometheus.CounterVec
	discrepancies   *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	restoreFailures prometheus.Counter
}

func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_outcomes_total",
		Help:      "Payment outcomes applied to orders, by source and result.",
	}, []string{"source", "result"})
	discrepancies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_discrepancies_total",
		Help:      "Payment outcomes that landed on an order in an unexpected state.",
	}, []string{"reason"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Processor webhook deliveries, by provider and handling result.",
	}, []string{"provider", "result"})
	restoreFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_restore_failures_total",
		Help:      "Per-item inventory restores that failed during cancellation.",
	})
	reg.MustRegister(outcomes, discrepancies, webhooks, restoreFailures)
	return &ReconciliationMetrics{
		outcomes:        outcomes,
		discrepancies:   discrepancies,
		webhooks:        webhooks,
		restoreFailures: restoreFailures,
	}
}

func (m *ReconciliationMetrics) IncOutcome(source, result string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}

func (m *ReconciliationMetrics) IncDiscrepancy(reason string) {
	if m == nil || m.discrepancies == nil {
		return
	}
	m.discrepancies.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *ReconciliationMetrics) IncWebhook(provider, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

func (m *ReconciliationMetrics) IncRestoreFailure() {
	if m == nil || m.restoreFailures == nil {
		return
	}
	m.restoreFailures.Inc()
}
