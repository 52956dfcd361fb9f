// Package ports declares the interfaces the coordinator needs from
// collaborators that live outside the certification pipeline. Adapters
// implement them; tests mock them.
package ports

//go:generate mockgen -destination=../mocks/mocks.go -package=mocks laurel/internal/coordinator/ports ScorerPort,AnchorQueue

import (
	"context"

	"laurel/internal/classifier"
	"laurel/pkg/domain"
)

// ScorerPort fetches the metric vector for a contribution from the external
// metric scorer. Implementations return CodeUnavailable when the scorer
// cannot be reached and CodeNotFound when it has no record of the
// contribution.
type ScorerPort interface {
	Score(ctx context.Context, contributionID domain.ContributionID) (classifier.MetricVector, error)
}
