package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the epoch ledger.
type Metrics struct {
	BudgetRemaining prometheus.Gauge
	EpochIndex      prometheus.Gauge
	Advances        *prometheus.CounterVec
	Reservations    prometheus.Counter
	ReserveFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all epoch ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		BudgetRemaining: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "laurel_epoch_budget_remaining",
			Help: "Remaining emission budget of the active epoch",
		}),
		EpochIndex: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "laurel_epoch_index",
			Help: "Index of the active epoch",
		}),
		Advances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_epoch_advances_total",
			Help: "Total epoch advances by trigger (exhaustion or governance)",
		}, []string{"trigger"}),
		Reservations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_epoch_reservations_total",
			Help: "Total successful budget reservations",
		}),
		ReserveFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_epoch_reserve_failures_total",
			Help: "Total failed budget reservations by reason",
		}, []string{"reason"}),
	}
}

// ObserveActive records the active epoch's index and remaining budget.
func (m *Metrics) ObserveActive(index uint64, remaining int64) {
	if m == nil {
		return
	}
	m.EpochIndex.Set(float64(index))
	m.BudgetRemaining.Set(float64(remaining))
}

// IncrementAdvance records an epoch advance with its trigger.
func (m *Metrics) IncrementAdvance(trigger string) {
	if m == nil {
		return
	}
	m.Advances.WithLabelValues(trigger).Inc()
}

// IncrementReservation records a successful reservation.
func (m *Metrics) IncrementReservation() {
	if m == nil {
		return
	}
	m.Reservations.Inc()
}

// IncrementReserveFailure records a failed reservation.
func (m *Metrics) IncrementReserveFailure(reason string) {
	if m == nil {
		return
	}
	m.ReserveFailures.WithLabelValues(reason).Inc()
}
