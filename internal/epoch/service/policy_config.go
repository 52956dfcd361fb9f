package service

import (
	"fmt"

	"laurel/internal/classifier"
	"laurel/internal/platform/config"
)

// PolicyFromConfig converts the flat configuration policy into the typed
// ledger policy, resolving tier names.
func PolicyFromConfig(cfg config.Policy) (Policy, error) {
	founder, err := thresholdsFromConfig(cfg.FounderCutoffs)
	if err != nil {
		return Policy{}, fmt.Errorf("founder cutoffs: %w", err)
	}
	epoch, err := thresholdsFromConfig(cfg.EpochCutoffs)
	if err != nil {
		return Policy{}, fmt.Errorf("epoch cutoffs: %w", err)
	}
	return Policy{
		FounderBudget:     cfg.FounderBudget,
		BaseBudget:        cfg.BaseBudget,
		DecayFactor:       cfg.DecayFactor,
		Escalation:        cfg.Escalation,
		FounderThresholds: founder,
		EpochThresholds:   epoch,
	}, nil
}

func thresholdsFromConfig(cutoffs map[string]float64) (classifier.ThresholdTable, error) {
	table := make(classifier.ThresholdTable, len(cutoffs))
	for name, floor := range cutoffs {
		tier, err := classifier.ParseTier(name)
		if err != nil {
			return nil, err
		}
		table[tier] = floor
	}
	return table, nil
}
