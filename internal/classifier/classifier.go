package classifier

import (
	"fmt"

	domainerrors "laurel/pkg/domain-errors"
)

// DefaultWeights are the v1 scoring weights.
var DefaultWeights = Weights{
	Coherence:  0.4,
	Density:    0.3,
	Novelty:    0.3,
	Redundancy: 0.2,
}

// Classifier scores metric vectors against an epoch's threshold table.
type Classifier struct {
	weights Weights
}

func New(weights Weights) *Classifier {
	return &Classifier{weights: weights}
}

// ValidateMetrics rejects any metric outside [0,1]. Classification never
// proceeds on malformed input.
func ValidateMetrics(m MetricVector) error {
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"coherence", m.Coherence},
		{"density", m.Density},
		{"novelty", m.Novelty},
		{"redundancy", m.Redundancy},
	} {
		if dim.value < 0 || dim.value > 1 {
			return domainerrors.New(domainerrors.CodeValidation,
				fmt.Sprintf("metric %s out of range: %v not in [0,1]", dim.name, dim.value))
		}
	}
	return nil
}

// Classify computes the composite score and selects the highest tier whose
// threshold the score meets. The score is clamped to [0,1].
func (c *Classifier) Classify(m MetricVector, thresholds ThresholdTable) (float64, Tier, string, error) {
	if err := ValidateMetrics(m); err != nil {
		return 0, TierRejected, "", err
	}

	score := c.weights.Coherence*m.Coherence +
		c.weights.Density*m.Density +
		c.weights.Novelty*m.Novelty -
		c.weights.Redundancy*m.Redundancy
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	for _, tier := range rewardableDescending {
		floor, ok := thresholds[tier]
		if !ok {
			continue
		}
		if score >= floor {
			return score, tier, c.justify(m, score, tier, floor), nil
		}
	}

	lowest, ok := lowestThreshold(thresholds)
	just := fmt.Sprintf("score %.2f met no tier threshold", score)
	if ok {
		just = fmt.Sprintf("score %.2f fell below the %s threshold %.2f", score, lowest.tier, lowest.floor)
	}
	return score, TierRejected, just, nil
}

// justify names the binding threshold and the metric contributing most to
// the weighted score. Required for auditability.
func (c *Classifier) justify(m MetricVector, score float64, tier Tier, floor float64) string {
	dominant := c.dominantMetric(m)
	return fmt.Sprintf("score %.2f cleared the %s threshold %.2f; %s was the dominant signal",
		score, tier, floor, dominant)
}

// dominantMetric returns the positively weighted metric with the largest
// contribution. Ties resolve in declaration order to keep output stable.
func (c *Classifier) dominantMetric(m MetricVector) string {
	best := "coherence"
	bestWeighted := c.weights.Coherence * m.Coherence
	if w := c.weights.Density * m.Density; w > bestWeighted {
		best, bestWeighted = "density", w
	}
	if w := c.weights.Novelty * m.Novelty; w > bestWeighted {
		best = "novelty"
	}
	return best
}

type thresholdEntry struct {
	tier  Tier
	floor float64
}

func lowestThreshold(tt ThresholdTable) (thresholdEntry, bool) {
	for _, tier := range []Tier{TierBronze, TierSilver, TierGold, TierFounder} {
		if floor, ok := tt[tier]; ok {
			return thresholdEntry{tier: tier, floor: floor}, true
		}
	}
	return thresholdEntry{}, false
}
