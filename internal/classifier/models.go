// Package classifier maps metric vectors to reward tiers.
//
// Classification is pure: the same vector and threshold table always yield
// the same score, tier, and justification, so re-runs are idempotent.
package classifier

import (
	"fmt"

	"laurel/pkg/domain"
)

// Tier is the discrete reward class, ordered by reward magnitude.
type Tier int

const (
	TierRejected Tier = iota
	TierBronze
	TierSilver
	TierGold
	TierFounder
)

var tierNames = map[Tier]string{
	TierRejected: "rejected",
	TierBronze:   "bronze",
	TierSilver:   "silver",
	TierGold:     "gold",
	TierFounder:  "founder",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a tier name back to its ordinal form.
func ParseTier(name string) (Tier, error) {
	for t, n := range tierNames {
		if n == name {
			return t, nil
		}
	}
	return TierRejected, fmt.Errorf("unknown tier %q", name)
}

// MarshalText lets tiers serialize by name, including as JSON map keys in
// threshold tables.
func (t Tier) MarshalText() ([]byte, error) {
	name, ok := tierNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown tier ordinal %d", int(t))
	}
	return []byte(name), nil
}

func (t *Tier) UnmarshalText(data []byte) error {
	parsed, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MetricVector holds the four document-level quality metrics, each in [0,1].
// Produced once per contribution by the external scorer; immutable once
// recorded.
type MetricVector struct {
	Coherence  float64 `json:"coherence"`
	Density    float64 `json:"density"`
	Novelty    float64 `json:"novelty"`
	Redundancy float64 `json:"redundancy"`
}

// Weights fixes the composite score computation for a system version.
// Redundancy is a penalty weight.
type Weights struct {
	Coherence  float64
	Density    float64
	Novelty    float64
	Redundancy float64
}

// ThresholdTable maps each rewardable tier to the minimum score that earns
// it. Tiers absent from the table are unreachable in that epoch.
type ThresholdTable map[Tier]float64

// rewardableDescending lists tiers from highest to lowest reward. Rejected
// is never in a threshold table; it is the fallthrough.
var rewardableDescending = []Tier{TierFounder, TierGold, TierSilver, TierBronze}

// Validate checks that thresholds are in [0,1] and strictly increase with
// tier ordinal.
func (tt ThresholdTable) Validate() error {
	prev := -1.0
	for _, tier := range []Tier{TierBronze, TierSilver, TierGold, TierFounder} {
		floor, ok := tt[tier]
		if !ok {
			continue
		}
		if floor < 0 || floor > 1 {
			return fmt.Errorf("threshold for %s out of range: %v", tier, floor)
		}
		if floor <= prev {
			return fmt.Errorf("threshold for %s (%v) does not exceed the lower tier's (%v)", tier, floor, prev)
		}
		prev = floor
	}
	return nil
}

// Escalate returns a new table with every threshold moved toward 1 by the
// given fraction of its remaining headroom. Thresholds stay strictly
// increasing and never reach 1.
func (tt ThresholdTable) Escalate(fraction float64) ThresholdTable {
	out := make(ThresholdTable, len(tt))
	for tier, floor := range tt {
		out[tier] = floor + fraction*(1-floor)
	}
	return out
}

// Clone returns a copy the caller may mutate.
func (tt ThresholdTable) Clone() ThresholdTable {
	out := make(ThresholdTable, len(tt))
	for tier, floor := range tt {
		out[tier] = floor
	}
	return out
}

// Evaluation is the immutable record of one classification run.
type Evaluation struct {
	ContributionID domain.ContributionID `json:"contribution_id"`
	Metrics        MetricVector          `json:"metrics"`
	Score          float64               `json:"score"`
	Tier           Tier                  `json:"tier"`
	Justification  string                `json:"justification"`
}
