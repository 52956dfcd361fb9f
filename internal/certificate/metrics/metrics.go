package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate registry.
type Metrics struct {
	Registered      *prometheus.CounterVec
	DuplicateWins   prometheus.Counter
	AnchorsAttached prometheus.Counter
	AnchorConflicts prometheus.Counter
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_certificates_registered_total",
			Help: "Total certificates registered by tier",
		}, []string{"tier"}),
		DuplicateWins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_certificate_duplicate_registrations_total",
			Help: "Registration attempts answered with the existing certificate",
		}),
		AnchorsAttached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_certificate_anchors_attached_total",
			Help: "Total on-chain refs attached to certificates",
		}),
		AnchorConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_certificate_anchor_conflicts_total",
			Help: "Anchor attachments rejected for carrying a different ref",
		}),
	}
}

// IncrementRegistered records a fresh registration.
func (m *Metrics) IncrementRegistered(tier string) {
	if m == nil {
		return
	}
	m.Registered.WithLabelValues(tier).Inc()
}

// IncrementDuplicateWin records a registration race resolved to the
// existing certificate.
func (m *Metrics) IncrementDuplicateWin() {
	if m == nil {
		return
	}
	m.DuplicateWins.Inc()
}

// IncrementAnchorAttached records a successful ref attachment.
func (m *Metrics) IncrementAnchorAttached() {
	if m == nil {
		return
	}
	m.AnchorsAttached.Inc()
}

// IncrementAnchorConflict records a rejected conflicting ref.
func (m *Metrics) IncrementAnchorConflict() {
	if m == nil {
		return
	}
	m.AnchorConflicts.Inc()
}
