// Package memory provides the in-memory certificate store.
//
// The keyspace is sharded so independent contribution IDs never contend;
// only racers on the same ID serialize.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"laurel/internal/certificate/models"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

const shardCount = 64

type shard struct {
	mu    sync.RWMutex
	certs map[string]*models.Certificate
}

// InMemoryStore keeps certificates in sharded maps.
type InMemoryStore struct {
	shards [shardCount]*shard
	count  atomic.Int64
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{certs: make(map[string]*models.Certificate)}
	}
	return s
}

func (s *InMemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, cert *models.Certificate) error {
	key := cert.ContributionID.String()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.certs[key]; exists {
		return fmt.Errorf("certificate for %s: %w", key, sentinel.ErrConflict)
	}
	sh.certs[key] = cert.Clone()
	s.count.Add(1)
	return nil
}

func (s *InMemoryStore) FindByContribution(_ context.Context, contributionID domain.ContributionID) (*models.Certificate, error) {
	key := contributionID.String()
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	cert, ok := sh.certs[key]
	if !ok {
		return nil, fmt.Errorf("certificate for %s: %w", key, sentinel.ErrNotFound)
	}
	return cert.Clone(), nil
}

func (s *InMemoryStore) AttachRef(_ context.Context, contributionID domain.ContributionID, ref string) (*models.Certificate, error) {
	key := contributionID.String()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cert, ok := sh.certs[key]
	if !ok {
		return nil, fmt.Errorf("certificate for %s: %w", key, sentinel.ErrNotFound)
	}
	if cert.OnChainRef == ref {
		return cert.Clone(), nil
	}
	if cert.OnChainRef != "" {
		return nil, fmt.Errorf("certificate for %s already anchored: %w", key, sentinel.ErrAlreadyUsed)
	}
	cert.ApplyRef(ref)
	return cert.Clone(), nil
}

func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	return s.count.Load(), nil
}
