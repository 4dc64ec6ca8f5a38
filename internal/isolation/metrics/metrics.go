package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts isolated store operations. Labels never carry signal ids.
type Metrics struct {
	// operation: store, get, delete, verify, describe
	// outcome: ok, absent, denied, error
	Operations *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_isolation_operations_total",
			Help: "Isolated signal store operations by outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) Inc(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}
