// Package adapters provides concrete implementations of the coordinator's
// ports against external systems.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"laurel/internal/classifier"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
)

// HTTPScorer calls the external metric scorer over HTTP. Metric vectors are
// immutable once recorded, so successful responses are cached for the
// configured TTL and retries hit the cache instead of the scorer.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
	logger  *slog.Logger
}

// NewHTTPScorer builds a scorer adapter for the given base URL. A zero
// cacheTTL disables caching.
func NewHTTPScorer(baseURL string, timeout, cacheTTL time.Duration, logger *slog.Logger) *HTTPScorer {
	var c *gocache.Cache
	if cacheTTL > 0 {
		c = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return &HTTPScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   c,
		logger:  logger,
	}
}

// Score fetches the metric vector for a contribution. Any transport failure
// or 5xx answer surfaces as CodeUnavailable so callers treat it as
// retryable rather than a rejection.
func (s *HTTPScorer) Score(ctx context.Context, contributionID domain.ContributionID) (classifier.MetricVector, error) {
	key := contributionID.String()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(classifier.MetricVector), nil
		}
	}

	url := fmt.Sprintf("%s/v1/scores/%s", s.baseURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return classifier.MetricVector{}, dErrors.Wrap(err, dErrors.CodeInternal, "build scorer request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "metric scorer unreachable",
				"contribution_id", key,
				"error", err,
			)
		}
		return classifier.MetricVector{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "metric scorer unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return classifier.MetricVector{}, dErrors.New(dErrors.CodeNotFound, "no metrics recorded for contribution")
	default:
		return classifier.MetricVector{}, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("metric scorer returned status %d", resp.StatusCode))
	}

	var metrics classifier.MetricVector
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return classifier.MetricVector{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode scorer response")
	}

	if s.cache != nil {
		s.cache.SetDefault(key, metrics)
	}
	return metrics, nil
}
