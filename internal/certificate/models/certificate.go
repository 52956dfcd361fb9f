// Package models defines the certificate aggregate.
package models

import (
	"time"

	"laurel/internal/classifier"
	"laurel/pkg/domain"
	domainerrors "laurel/pkg/domain-errors"
)

// Certificate is the durable, unique record proving a contribution was
// evaluated and rewarded.
//
// Invariants:
//   - At most one certificate per contribution ID, ever
//   - Never deleted
//   - OnChainRef is append-only enrichment: filled at most once when the
//     anchoring transaction finalizes, no other field changes
type Certificate struct {
	ContributionID domain.ContributionID `json:"contribution_id"`
	ContributorID  domain.ContributorID  `json:"contributor_id"`
	Tier           classifier.Tier       `json:"tier"`
	Amount         int64                 `json:"amount"`
	EpochIndex     uint64                `json:"epoch_index"`
	RegisteredAt   time.Time             `json:"registered_at"`
	OnChainRef     string                `json:"on_chain_ref,omitempty"`
}

// IsAnchored reports whether an on-chain ref has been attached.
func (c *Certificate) IsAnchored() bool {
	return c.OnChainRef != ""
}

// CanAttachRef checks the enrichment rules: attaching the ref already held
// is a no-op, attaching a different one is a caller logic error.
func (c *Certificate) CanAttachRef(ref string) error {
	if ref == "" {
		return domainerrors.New(domainerrors.CodeValidation, "on-chain ref is required")
	}
	if c.OnChainRef != "" && c.OnChainRef != ref {
		return domainerrors.New(domainerrors.CodeConflict, "certificate already anchored to a different ref")
	}
	return nil
}

// ApplyRef attaches the ref. Call CanAttachRef first under the store's
// per-key exclusive access.
func (c *Certificate) ApplyRef(ref string) {
	c.OnChainRef = ref
}

// Clone returns a copy so store internals never leak to callers.
func (c *Certificate) Clone() *Certificate {
	out := *c
	return &out
}
