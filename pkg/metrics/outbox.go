package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks relay results and how long events wait in the outbox
// table before they reach the topic.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	lag     prometheus.Histogram
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_publish_lag_seconds",
		Help:      "Time between an outbox row being written and its publish.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_batches_total",
		Help:      "Non-empty batches claimed by the publisher.",
	})
	reg.MustRegister(results, lag, batches)
	return &OutboxMetrics{results: results, lag: lag, batches: batches}
}

func (m *OutboxMetrics) ObservePublished(eventType string, createdAt time.Time) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), "published").Inc()
	if !createdAt.IsZero() {
		m.lag.Observe(time.Since(createdAt).Seconds())
	}
}

func (m *OutboxMetrics) IncResult(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
