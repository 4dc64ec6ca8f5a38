package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the routing engine.
type Metrics struct {
	// Delivery attempts by outcome: success, transport_error, circuit_open
	Attempts *prometheus.CounterVec

	// Final result statuses after a delivery run
	Results *prometheus.CounterVec

	// Signals suppressed by an active blackout
	Suppressed prometheus.Counter

	// Signals with no eligible partner
	Unrouted prometheus.Counter

	// Latency of one full delivery run to a partner, including backoff
	DispatchLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_routing_attempts_total",
			Help: "Webhook delivery attempts by outcome",
		}, []string{"outcome"}),

		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_routing_results_total",
			Help: "Routing results by final status",
		}, []string{"status"}),

		Suppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_routing_blackout_suppressed_total",
			Help: "Signals not re-routed because a blackout was active",
		}),

		Unrouted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_routing_no_partner_total",
			Help: "Signals for which no active partner covered the jurisdiction and capabilities",
		}),

		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_routing_dispatch_duration_seconds",
			Help:    "Duration of a delivery run to one partner including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) IncAttempt(outcome string) {
	if m != nil {
		m.Attempts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncResult(status string) {
	if m != nil {
		m.Results.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncSuppressed() {
	if m != nil {
		m.Suppressed.Inc()
	}
}

func (m *Metrics) IncUnrouted() {
	if m != nil {
		m.Unrouted.Inc()
	}
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m != nil {
		m.DispatchLatency.Observe(d.Seconds())
	}
}
