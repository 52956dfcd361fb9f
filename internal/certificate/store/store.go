// Package store defines the certificate persistence contract.
package store

import (
	"context"

	"laurel/internal/certificate/models"
	"laurel/pkg/domain"
)

// Store persists certificates keyed by contribution ID.
//
// CreateIfAbsent is the atomic insert-if-absent that carries the global
// at-most-one-certificate invariant; implementations must guarantee that
// concurrent racers on the same key see exactly one winner. AttachRef runs
// under the same per-key exclusive access.
type Store interface {
	// CreateIfAbsent inserts the certificate atomically. Returns
	// sentinel.ErrConflict if the contribution is already certified.
	CreateIfAbsent(ctx context.Context, cert *models.Certificate) error

	// FindByContribution returns the certificate or sentinel.ErrNotFound.
	FindByContribution(ctx context.Context, contributionID domain.ContributionID) (*models.Certificate, error)

	// AttachRef fills the on-chain ref. Attaching the ref already held is
	// a no-op; a different ref returns sentinel.ErrAlreadyUsed; a missing
	// certificate returns sentinel.ErrNotFound.
	AttachRef(ctx context.Context, contributionID domain.ContributionID, ref string) (*models.Certificate, error)

	// Count returns the number of registered certificates.
	Count(ctx context.Context) (int64, error)
}
