package subscription

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts webhook outcomes and lifecycle operations. A nil *Metrics
// records nothing.
type Metrics struct {
	webhooks   *prometheus.CounterVec
	operations *prometheus.CounterVec
	emitted    *prometheus.CounterVec
}

// NewMetrics registers the billing counters with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events handled, by event type and outcome.",
		}, []string{"type", "outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "subscription",
			Name:      "operations_total",
			Help:      "Subscription lifecycle operations, by operation and result.",
		}, []string{"operation", "result"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Domain events passed to the emitter, by name.",
		}, []string{"name"}),
	}
	for _, c := range []prometheus.Collector{m.webhooks, m.operations, m.emitted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// webhook labels by kind, so unrecognized types share the "unknown" series.
func (m *Metrics) webhook(kind EventKind, outcome Outcome) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(kind.String(), string(outcome)).Inc()
}

func (m *Metrics) operation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) event(e Event) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(e.EventName()).Inc()
}
