// Package metrics exposes Prometheus metrics for the certification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks submission outcomes and latency end to end.
type Metrics struct {
	Submissions       *prometheus.CounterVec
	SubmissionLatency *prometheus.HistogramVec
	Rejections        prometheus.Counter
	ScorerFetches     *prometheus.CounterVec
}

// New registers coordinator metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_submissions_total",
			Help: "Certification submissions by final status.",
		}, []string{"status"}),
		SubmissionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "laurel_submission_duration_seconds",
			Help:    "End to end submission latency by final status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		Rejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laurel_submission_rejections_total",
			Help: "Submissions classified below the lowest rewardable tier.",
		}),
		ScorerFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laurel_scorer_fetches_total",
			Help: "Metric scorer fetches by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveSubmission records one finished submission.
func (m *Metrics) ObserveSubmission(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(status).Inc()
	m.SubmissionLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

// IncrementRejection counts a rejected submission.
func (m *Metrics) IncrementRejection() {
	if m == nil {
		return
	}
	m.Rejections.Inc()
}

// IncrementScorerFetch counts a scorer call by outcome ("ok" or "error").
func (m *Metrics) IncrementScorerFetch(outcome string) {
	if m == nil {
		return
	}
	m.ScorerFetches.WithLabelValues(outcome).Inc()
}
