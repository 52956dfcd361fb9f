// Package redis provides a Redis-backed certificate store for deployments
// that share the registry across instances.
//
// SETNX carries the atomic insert-if-absent; ref attachment runs as a Lua
// script so the compare-and-set is a single server-side step.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"laurel/internal/certificate/models"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

const (
	certificateKeyPrefix = "cert:id:"
	certificateCountKey  = "cert:count"
)

var createScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
	redis.call('INCR', KEYS[2])
	return 1
end
return 0
`)

var attachScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 'missing'
end
local cert = cjson.decode(raw)
local existing = cert['on_chain_ref']
if existing == nil or existing == '' then
	cert['on_chain_ref'] = ARGV[1]
	local updated = cjson.encode(cert)
	redis.call('SET', KEYS[1], updated)
	return updated
elseif existing == ARGV[1] then
	return raw
else
	return 'conflict'
end
`)

// RedisStore keeps certificates as JSON values keyed by contribution ID.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(contributionID domain.ContributionID) string {
	return certificateKeyPrefix + contributionID.String()
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, cert *models.Certificate) error {
	payload, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}

	created, err := createScript.Run(ctx, s.client,
		[]string{s.key(cert.ContributionID), certificateCountKey},
		string(payload),
	).Int()
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("certificate for %s: %w", cert.ContributionID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByContribution(ctx context.Context, contributionID domain.ContributionID) (*models.Certificate, error) {
	raw, err := s.client.Get(ctx, s.key(contributionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("certificate for %s: %w", contributionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	var cert models.Certificate
	if err := json.Unmarshal([]byte(raw), &cert); err != nil {
		return nil, fmt.Errorf("unmarshal certificate: %w", err)
	}
	return &cert, nil
}

func (s *RedisStore) AttachRef(ctx context.Context, contributionID domain.ContributionID, ref string) (*models.Certificate, error) {
	result, err := attachScript.Run(ctx, s.client, []string{s.key(contributionID)}, ref).Text()
	if err != nil {
		return nil, fmt.Errorf("attach ref: %w", err)
	}
	switch result {
	case "missing":
		return nil, fmt.Errorf("certificate for %s: %w", contributionID, sentinel.ErrNotFound)
	case "conflict":
		return nil, fmt.Errorf("certificate for %s already anchored: %w", contributionID, sentinel.ErrAlreadyUsed)
	}

	var cert models.Certificate
	if err := json.Unmarshal([]byte(result), &cert); err != nil {
		return nil, fmt.Errorf("unmarshal certificate: %w", err)
	}
	return &cert, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	count, err := s.client.Get(ctx, certificateCountKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}
