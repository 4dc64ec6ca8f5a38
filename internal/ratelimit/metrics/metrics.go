package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Denied        *prometheus.CounterVec
	CheckFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Denied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ratelimit_denied_total",
			Help: "Requests rejected by the rate limiter, by bucket class",
		}, []string{"class"}),
		CheckFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_ratelimit_check_failures_total",
			Help: "Rate limit checks that failed open because the store was unavailable",
		}),
	}
}

func (m *Metrics) IncDenied(class string) {
	if m == nil {
		return
	}
	m.Denied.WithLabelValues(class).Inc()
}

func (m *Metrics) IncCheckFailure() {
	if m == nil {
		return
	}
	m.CheckFailures.Inc()
}
