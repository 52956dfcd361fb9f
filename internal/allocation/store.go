package allocation

import (
	"context"

	"laurel/pkg/domain"
)

// Store persists token allocations keyed by contribution ID.
type Store interface {
	// CreateIfAbsent inserts the allocation atomically. Returns
	// sentinel.ErrConflict if the contribution already holds one.
	CreateIfAbsent(ctx context.Context, alloc *TokenAllocation) error

	// FindByContribution returns the allocation for a contribution or
	// sentinel.ErrNotFound.
	FindByContribution(ctx context.Context, contributionID domain.ContributionID) (*TokenAllocation, error)

	// TotalAllocated sums every allocated amount.
	TotalAllocated(ctx context.Context) (int64, error)
}
