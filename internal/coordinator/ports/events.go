package ports

import (
	"context"

	"laurel/internal/certificate/models"
)

// AnchorQueue receives freshly registered certificates that still need an
// on-chain anchor. The anchoring worker drains it out of band; the
// coordinator never waits for a transaction to finalize.
type AnchorQueue interface {
	EnqueueRegistered(ctx context.Context, cert *models.Certificate) error
}
