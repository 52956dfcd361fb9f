package handler

import (
	"strings"

	"laurel/internal/classifier"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
)

// SubmitRequest is the HTTP request body for POST /v1/certifications.
type SubmitRequest struct {
	ContributionID string       `json:"contribution_id"`
	ContributorID  string       `json:"contributor_id"`
	Metrics        *MetricsBody `json:"metrics,omitempty"`

	// Parsed values (populated by Validate)
	parsedContributionID domain.ContributionID
	parsedContributorID  domain.ContributorID
}

// MetricsBody is the optional inline metric vector. When omitted the
// coordinator fetches the vector from the metric scorer.
type MetricsBody struct {
	Coherence  float64 `json:"coherence"`
	Density    float64 `json:"density"`
	Novelty    float64 `json:"novelty"`
	Redundancy float64 `json:"redundancy"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ContributionID = strings.TrimSpace(r.ContributionID)
	if r.ContributionID == "" {
		return dErrors.New(dErrors.CodeValidation, "contribution_id is required")
	}
	contributionID, err := domain.ParseContributionID(r.ContributionID)
	if err != nil {
		return err
	}
	r.parsedContributionID = contributionID

	r.ContributorID = strings.TrimSpace(r.ContributorID)
	if r.ContributorID == "" {
		return dErrors.New(dErrors.CodeValidation, "contributor_id is required")
	}
	contributorID, err := domain.ParseContributorID(r.ContributorID)
	if err != nil {
		return err
	}
	r.parsedContributorID = contributorID

	// Range errors on inline metrics surface from the classifier with the
	// offending dimension named, so only structure is checked here.
	return nil
}

// ParsedContributionID returns the validated contribution ID.
func (r *SubmitRequest) ParsedContributionID() domain.ContributionID {
	return r.parsedContributionID
}

// ParsedContributorID returns the validated contributor ID.
func (r *SubmitRequest) ParsedContributorID() domain.ContributorID {
	return r.parsedContributorID
}

// MetricVector converts the inline metrics, if present.
func (r *SubmitRequest) MetricVector() *classifier.MetricVector {
	if r.Metrics == nil {
		return nil
	}
	return &classifier.MetricVector{
		Coherence:  r.Metrics.Coherence,
		Density:    r.Metrics.Density,
		Novelty:    r.Metrics.Novelty,
		Redundancy: r.Metrics.Redundancy,
	}
}

// AnchorRequest is the HTTP request body for
// POST /v1/certifications/{contributionID}/anchor.
type AnchorRequest struct {
	Ref string `json:"ref"`
}

// Validate validates the anchor request.
func (r *AnchorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Ref = strings.TrimSpace(r.Ref)
	if r.Ref == "" {
		return dErrors.New(dErrors.CodeValidation, "ref is required")
	}
	if len(r.Ref) > 256 {
		return dErrors.New(dErrors.CodeValidation, "ref must be at most 256 characters")
	}
	return nil
}
