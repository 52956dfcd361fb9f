// Package metrics exposes Prometheus metrics for the anchoring worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks anchoring outcomes and circuit state.
type Metrics struct {
	Outcomes    *prometheus.CounterVec
	Retries     prometheus.Counter
	CircuitOpen prometheus.Gauge
}

// New registers anchoring metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_anchoring_outcomes_total",
			Help: "Anchoring attempts by outcome (anchored, failed, dropped).",
		}, []string{"outcome"}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_anchoring_retries_total",
			Help: "Anchoring attempts re-enqueued after a failure.",
		}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "laurel_anchoring_circuit_open",
			Help: "1 while the anchor client circuit is open.",
		}),
	}
}

// IncrementOutcome counts one finished anchoring attempt.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// IncrementRetry counts a re-enqueued certificate.
func (m *Metrics) IncrementRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// ObserveCircuit records the breaker position.
func (m *Metrics) ObserveCircuit(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
