package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "beacon/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for audit emission.
type Metrics struct {
	PersistDuration *prometheus.HistogramVec
	PersistFailures *prometheus.CounterVec
	Dropped         prometheus.Counter
	SampledOut      prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		PersistDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_audit_persist_duration_seconds",
			Help:    "Duration of audit event persistence by category",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"category"}),
		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_audit_persist_failures_total",
			Help: "Total audit events that failed to persist by category",
		}, []string{"category"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_audit_dropped_total",
			Help: "Total non-compliance audit events dropped because the buffer was full",
		}),
		SampledOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_audit_sampled_out_total",
			Help: "Total operations audit events skipped by sampling",
		}),
	}
}

func (m *Metrics) observePersist(category audit.EventCategory, d time.Duration) {
	if m != nil {
		m.PersistDuration.WithLabelValues(string(category)).Observe(d.Seconds())
	}
}

func (m *Metrics) incPersistFailures(category audit.EventCategory) {
	if m != nil {
		m.PersistFailures.WithLabelValues(string(category)).Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incSampledOut() {
	if m != nil {
		m.SampledOut.Inc()
	}
}
