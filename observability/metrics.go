// Package observability exports ledger and job metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skillcoin"

// Metrics implements ledger.Hooks and carries the counters used by jobs and
// middleware.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	conflicts   *prometheus.CounterVec
	retries     *prometheus.CounterVec
	reminders   prometheus.Counter
	rateLimited *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"op", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflicts_total",
			Help:      "Transactions aborted by a concurrent write.",
		}, []string{"op"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "retries_total",
			Help:      "Aborted transactions that were run again.",
		}, []string{"op"}),
		reminders: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "booking_reminders_total",
			Help:      "Bookings flagged for a reminder.",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveOperation(op, status string, dur time.Duration) {
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) IncConflict(op string) { m.conflicts.WithLabelValues(op).Inc() }

func (m *Metrics) IncRetry(op string) { m.retries.WithLabelValues(op).Inc() }

func (m *Metrics) AddReminders(n int) {
	if n > 0 {
		m.reminders.Add(float64(n))
	}
}

func (m *Metrics) IncRateLimited(route string) { m.rateLimited.WithLabelValues(route).Inc() }
