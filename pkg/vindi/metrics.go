package vindi

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments gateway requests. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttled prometheus.Counter
	rejected  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Billing gateway requests, by operation and status class.",
		}, []string{"op", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Billing gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "rate_limit_waits_total",
			Help:      "Requests that waited for the provider rate limit to reset.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "circuit_rejections_total",
			Help:      "Requests failed fast by the open circuit breaker.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.latency, m.throttled, m.rejected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(op, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, status).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) throttle() {
	if m != nil {
		m.throttled.Inc()
	}
}

func (m *Metrics) reject() {
	if m != nil {
		m.rejected.Inc()
	}
}
