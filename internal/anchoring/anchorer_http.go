package anchoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"laurel/internal/certificate/models"
	dErrors "laurel/pkg/domain-errors"
)

// HTTPAnchorer submits certificates to the anchoring backend over HTTP and
// blocks until the backend reports the finalized transaction reference.
type HTTPAnchorer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPAnchorer builds an anchor client for the given endpoint.
func NewHTTPAnchorer(endpoint string, timeout time.Duration) *HTTPAnchorer {
	return &HTTPAnchorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type anchorRequest struct {
	ContributionID string `json:"contribution_id"`
	ContributorID  string `json:"contributor_id"`
	Tier           string `json:"tier"`
	Amount         int64  `json:"amount"`
	EpochIndex     uint64 `json:"epoch_index"`
}

type anchorResponse struct {
	Ref string `json:"ref"`
}

// Anchor posts the certificate digest and returns the transaction ref.
func (a *HTTPAnchorer) Anchor(ctx context.Context, cert *models.Certificate) (string, error) {
	payload, err := json.Marshal(anchorRequest{
		ContributionID: cert.ContributionID.String(),
		ContributorID:  cert.ContributorID.String(),
		Tier:           cert.Tier.String(),
		Amount:         cert.Amount,
		EpochIndex:     cert.EpochIndex,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal anchor request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/v1/anchors", bytes.NewReader(payload))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build anchor request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "anchoring backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("anchoring backend returned status %d", resp.StatusCode))
	}

	var body anchorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "decode anchor response")
	}
	if body.Ref == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "anchoring backend returned an empty ref")
	}
	return body.Ref, nil
}
