// Package anchoring consumes registered certificates and records their
// on-chain anchor once the anchoring transaction finalizes. It runs out of
// band: certification never waits for the chain.
package anchoring

import (
	"context"

	"laurel/internal/certificate/models"
)

// Anchorer submits a certificate digest to the anchoring backend and returns
// the transaction reference once it finalizes.
type Anchorer interface {
	Anchor(ctx context.Context, cert *models.Certificate) (string, error)
}
