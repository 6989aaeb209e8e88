package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ConsumerResultHandled     = "handled"
	ConsumerResultDuplicate   = "duplicate"
	ConsumerResultInFlight    = "in_flight"
	ConsumerResultInvalid     = "invalid"
	ConsumerResultUnsupported = "unsupported"
	ConsumerResultFailed      = "failed"
)

// ConsumerMetrics counts Pub/Sub deliveries per consumer and result.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumer_messages_total",
		Help:      "Pub/Sub deliveries handled by a consumer, by result.",
	}, []string{"consumer", "result"})
	reg.MustRegister(messages)
	return &ConsumerMetrics{messages: messages}
}

func (m *ConsumerMetrics) Inc(consumer, result string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(consumer), normalizeLabel(result)).Inc()
}
