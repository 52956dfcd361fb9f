package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the allocation engine.
type Metrics struct {
	Allocations     *prometheus.CounterVec
	TokensAllocated prometheus.Counter
	IdempotentHits  prometheus.Counter
	BoundaryRetries prometheus.Counter
}

// New creates a new Metrics instance with all allocation metrics registered.
func New() *Metrics {
	return &Metrics{
		Allocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_allocations_total",
			Help: "Total token allocations by tier",
		}, []string{"tier"}),
		TokensAllocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_tokens_allocated_total",
			Help: "Total tokens debited from epoch budgets",
		}),
		IdempotentHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_allocation_idempotent_hits_total",
			Help: "Allocation requests answered with an existing record",
		}),
		BoundaryRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_allocation_boundary_retries_total",
			Help: "Allocations retried across an epoch boundary after exhaustion",
		}),
	}
}

// IncrementAllocation records a fresh allocation.
func (m *Metrics) IncrementAllocation(tier string, amount int64) {
	if m == nil {
		return
	}
	m.Allocations.WithLabelValues(tier).Inc()
	m.TokensAllocated.Add(float64(amount))
}

// IncrementIdempotentHit records a request short-circuited by an existing
// allocation.
func (m *Metrics) IncrementIdempotentHit() {
	if m == nil {
		return
	}
	m.IdempotentHits.Inc()
}

// IncrementBoundaryRetry records an exhaustion-triggered advance and retry.
func (m *Metrics) IncrementBoundaryRetry() {
	if m == nil {
		return
	}
	m.BoundaryRetries.Inc()
}
