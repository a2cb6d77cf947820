package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks how the relay settles outbox rows. A nil receiver is a
// no-op.
type OutboxMetrics struct {
	settled *prometheus.CounterVec
	drain   prometheus.Histogram
	lag     prometheus.Histogram
}

// NewOutboxMetrics registers the outbox relay metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_settled_total",
		Help:      "Outbox rows settled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	drain := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_drain_duration_seconds",
		Help:      "Duration of one outbox drain transaction.",
		Buckets:   prometheus.DefBuckets,
	})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_publish_lag_seconds",
		Help:      "Delay between an outbox row being written and being published.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
	})
	reg.MustRegister(settled, drain, lag)
	return &OutboxMetrics{settled: settled, drain: drain, lag: lag}
}

// ObserveSettled counts one row leaving the relay with the given outcome.
func (m *OutboxMetrics) ObserveSettled(eventType, outcome string) {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) ObserveDrain(d time.Duration) {
	if m == nil || m.drain == nil {
		return
	}
	m.drain.Observe(d.Seconds())
}

// ObserveLag records the publish delay for a row created at createdAt.
func (m *OutboxMetrics) ObserveLag(createdAt, publishedAt time.Time) {
	if m == nil || m.lag == nil || createdAt.IsZero() {
		return
	}
	lag := publishedAt.Sub(createdAt)
	if lag < 0 {
		lag = 0
	}
	m.lag.Observe(lag.Seconds())
}
