// Package memory provides the in-memory allocation store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"laurel/internal/allocation"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

// InMemoryStore keeps allocations keyed by contribution ID.
type InMemoryStore struct {
	mu          sync.RWMutex
	allocations map[string]*allocation.TokenAllocation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		allocations: make(map[string]*allocation.TokenAllocation),
	}
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, alloc *allocation.TokenAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alloc.ContributionID.String()
	if _, exists := s.allocations[key]; exists {
		return fmt.Errorf("allocation for %s: %w", key, sentinel.ErrConflict)
	}
	copied := *alloc
	s.allocations[key] = &copied
	return nil
}

func (s *InMemoryStore) FindByContribution(_ context.Context, contributionID domain.ContributionID) (*allocation.TokenAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alloc, ok := s.allocations[contributionID.String()]
	if !ok {
		return nil, fmt.Errorf("allocation for %s: %w", contributionID, sentinel.ErrNotFound)
	}
	copied := *alloc
	return &copied, nil
}

func (s *InMemoryStore) TotalAllocated(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, alloc := range s.allocations {
		total += alloc.Amount
	}
	return total, nil
}
