package allocation

import (
	"fmt"

	"laurel/internal/classifier"
)

// RewardTableFromConfig resolves configured tier names into the typed
// reward table.
func RewardTableFromConfig(rewards map[string]int64) (RewardTable, error) {
	table := make(RewardTable, len(rewards))
	for name, base := range rewards {
		tier, err := classifier.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("reward table: %w", err)
		}
		table[tier] = base
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
