package handler

import (
	"time"

	certmodels "laurel/internal/certificate/models"
	"laurel/internal/coordinator"
)

// CertificateResponse is the HTTP shape of a certificate.
type CertificateResponse struct {
	ContributionID string    `json:"contribution_id"`
	ContributorID  string    `json:"contributor_id"`
	Tier           string    `json:"tier"`
	Amount         int64     `json:"amount"`
	EpochIndex     uint64    `json:"epoch_index"`
	RegisteredAt   time.Time `json:"registered_at"`
	OnChainRef     string    `json:"on_chain_ref,omitempty"`
}

// FromCertificate converts a domain certificate to its HTTP shape.
func FromCertificate(cert *certmodels.Certificate) *CertificateResponse {
	return &CertificateResponse{
		ContributionID: cert.ContributionID.String(),
		ContributorID:  cert.ContributorID.String(),
		Tier:           cert.Tier.String(),
		Amount:         cert.Amount,
		EpochIndex:     cert.EpochIndex,
		RegisteredAt:   cert.RegisteredAt,
		OnChainRef:     cert.OnChainRef,
	}
}

// SubmitResponse is the HTTP response for POST /v1/certifications.
type SubmitResponse struct {
	Status        string               `json:"status"`
	Score         float64              `json:"score"`
	Tier          string               `json:"tier"`
	Justification string               `json:"justification,omitempty"`
	Certificate   *CertificateResponse `json:"certificate,omitempty"`
}

// FromResult converts a certification result to an HTTP response.
func FromResult(result *coordinator.CertificationResult) *SubmitResponse {
	resp := &SubmitResponse{
		Status:        string(result.Status),
		Score:         result.Score,
		Tier:          result.Tier.String(),
		Justification: result.Justification,
	}
	if result.Certificate != nil {
		resp.Certificate = FromCertificate(result.Certificate)
	}
	return resp
}

// StatsResponse is the HTTP response for GET /v1/stats.
type StatsResponse struct {
	TotalCertified  int64 `json:"total_certified"`
	TokensAllocated int64 `json:"tokens_allocated"`
}
