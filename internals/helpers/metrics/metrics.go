// Package metrics holds the Prometheus collectors for HTTP traffic, the order
// lifecycle and the expiration sweep.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "olimpiada"

// Sweep run outcomes.
const (
	SweepSuccess = "success"
	SweepNoop    = "noop"
	SweepSkipped = "skipped"
	SweepFailed  = "failed"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrderTransitions *prometheus.CounterVec

	SweepRuns     *prometheus.CounterVec
	SweepExpired  prometheus.Counter
	SweepDuration prometheus.Histogram
}

// New registers every collector on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OrderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_order_transitions_total",
			Help:      "Payment order state changes by target state",
		}, []string{"state"}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiration sweep runs by result",
		}, []string{"result"}),
		SweepExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_orders_total",
			Help:      "Orders moved to expired by the sweep",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Expiration sweep run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveSweep(result string, expired int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(result).Inc()
	if expired > 0 {
		m.SweepExpired.Add(float64(expired))
	}
	if result != SweepSkipped {
		m.SweepDuration.Observe(seconds)
	}
}
