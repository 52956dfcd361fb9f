// Package allocation converts tiers into token amounts and debits them
// against the epoch ledger, exactly once per contribution.
package allocation

import (
	"fmt"
	"time"

	"laurel/internal/classifier"
	"laurel/pkg/domain"
)

// TokenAllocation is the immutable record of one budget debit. Exactly one
// allocation may exist per contribution.
type TokenAllocation struct {
	ContributionID domain.ContributionID `json:"contribution_id"`
	EpochIndex     uint64                `json:"epoch_index"`
	Tier           classifier.Tier       `json:"tier"`
	Amount         int64                 `json:"amount"`
	AllocatedAt    time.Time             `json:"allocated_at"`
}

// RewardTable maps each rewardable tier to its base token amount, before
// epoch decay scaling.
type RewardTable map[classifier.Tier]int64

// Validate requires positive amounts that grow with tier ordinal.
func (rt RewardTable) Validate() error {
	prev := int64(0)
	for _, tier := range []classifier.Tier{classifier.TierBronze, classifier.TierSilver, classifier.TierGold, classifier.TierFounder} {
		base, ok := rt[tier]
		if !ok {
			continue
		}
		if base <= 0 {
			return fmt.Errorf("reward for %s must be positive, got %d", tier, base)
		}
		if base <= prev {
			return fmt.Errorf("reward for %s (%d) does not exceed the lower tier's (%d)", tier, base, prev)
		}
		prev = base
	}
	if _, ok := rt[classifier.TierRejected]; ok {
		return fmt.Errorf("rejected tier must not carry a reward")
	}
	return nil
}
