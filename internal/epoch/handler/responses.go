package handler

import (
	"time"

	"laurel/internal/classifier"
	"laurel/internal/epoch/models"
)

// EpochResponse is the HTTP shape of an epoch.
type EpochResponse struct {
	Index          uint64                    `json:"index"`
	Status         string                    `json:"status"`
	StartedAt      time.Time                 `json:"started_at"`
	ClosedAt       *time.Time                `json:"closed_at,omitempty"`
	InitialBudget  int64                     `json:"initial_budget"`
	EmissionBudget int64                     `json:"emission_budget"`
	Thresholds     classifier.ThresholdTable `json:"thresholds"`
}

// FromEpoch converts a domain epoch to its HTTP shape.
func FromEpoch(epoch *models.Epoch) *EpochResponse {
	return &EpochResponse{
		Index:          epoch.Index,
		Status:         string(epoch.Status),
		StartedAt:      epoch.StartedAt,
		ClosedAt:       epoch.ClosedAt,
		InitialBudget:  epoch.InitialBudget,
		EmissionBudget: epoch.EmissionBudget,
		Thresholds:     epoch.Thresholds,
	}
}

// FromEpochs converts the epoch history, oldest first.
func FromEpochs(epochs []*models.Epoch) []*EpochResponse {
	out := make([]*EpochResponse, 0, len(epochs))
	for _, epoch := range epochs {
		out = append(out, FromEpoch(epoch))
	}
	return out
}
