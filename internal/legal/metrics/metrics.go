package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Legal request transitions by target status, including submission
	// into pending_legal_review
	Transitions *prometheus.CounterVec

	// Transitions refused because the request had moved on concurrently
	// or was already terminal
	RejectedTransitions prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_legal_transitions_total",
			Help: "Legal request status transitions",
		}, []string{"to"}),
		RejectedTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_legal_transitions_rejected_total",
			Help: "Legal request transitions rejected by the workflow",
		}),
	}
}

func (m *Metrics) IncTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.RejectedTransitions.Inc()
	}
}
