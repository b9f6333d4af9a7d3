package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Metrics are the prometheus collectors a Bus reports to.
// A nil *Metrics disables reporting.
type Metrics struct {
	published  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inflight   prometheus.Gauge
}

// NewMetrics creates the bus collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "choreo",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Envelopes accepted by Publish.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "choreo",
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Handler invocations by outcome.",
		}, []string{"subscriber", "kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "choreo",
			Subsystem: "bus",
			Name:      "handler_duration_seconds",
			Help:      "Handler run time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"subscriber"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "choreo",
			Subsystem: "bus",
			Name:      "inflight",
			Help:      "Dispatches scheduled and not yet finished.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.deliveries, m.duration, m.inflight)
	}
	return m
}

func (m *Metrics) publish(kind string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

func (m *Metrics) scheduled(n int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(n))
}

func (m *Metrics) delivered(subscriber, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.deliveries.WithLabelValues(subscriber, kind, outcome).Inc()
	if outcome != OutcomeDropped {
		m.duration.WithLabelValues(subscriber).Observe(d.Seconds())
	}
}
