// Package memory provides the in-memory epoch store used by tests and
// single-node deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"laurel/internal/epoch/models"
	"laurel/pkg/platform/sentinel"
)

// InMemoryStore keeps the epoch sequence under a single mutex. Epochs are
// stored by value; callers always receive clones.
type InMemoryStore struct {
	mu     sync.RWMutex
	epochs map[uint64]*models.Epoch
	active *uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		epochs: make(map[uint64]*models.Epoch),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, epoch *models.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.epochs[epoch.Index]; exists {
		return fmt.Errorf("epoch %d: %w", epoch.Index, sentinel.ErrConflict)
	}
	s.epochs[epoch.Index] = epoch.Clone()
	if epoch.IsActive() {
		idx := epoch.Index
		s.active = &idx
	}
	return nil
}

func (s *InMemoryStore) FindByIndex(_ context.Context, index uint64) (*models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	epoch, ok := s.epochs[index]
	if !ok {
		return nil, fmt.Errorf("epoch %d: %w", index, sentinel.ErrNotFound)
	}
	return epoch.Clone(), nil
}

func (s *InMemoryStore) FindActive(_ context.Context) (*models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return nil, fmt.Errorf("active epoch: %w", sentinel.ErrNotFound)
	}
	return s.epochs[*s.active].Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Epoch, 0, len(s.epochs))
	for _, epoch := range s.epochs {
		out = append(out, epoch.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, index uint64, validate func(*models.Epoch) error, mutate func(*models.Epoch)) (*models.Epoch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epoch, ok := s.epochs[index]
	if !ok {
		return nil, fmt.Errorf("epoch %d: %w", index, sentinel.ErrNotFound)
	}
	if err := validate(epoch); err != nil {
		return nil, err
	}
	mutate(epoch)
	return epoch.Clone(), nil
}

func (s *InMemoryStore) Advance(_ context.Context, closeIndex uint64, closedAt time.Time, next *models.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.epochs[closeIndex]
	if !ok {
		return fmt.Errorf("epoch %d: %w", closeIndex, sentinel.ErrNotFound)
	}
	if !current.IsActive() {
		return fmt.Errorf("epoch %d is closed: %w", closeIndex, sentinel.ErrInvalidState)
	}
	if _, exists := s.epochs[next.Index]; exists {
		return fmt.Errorf("epoch %d: %w", next.Index, sentinel.ErrConflict)
	}

	current.ApplyClose(closedAt)
	s.epochs[next.Index] = next.Clone()
	idx := next.Index
	s.active = &idx
	return nil
}
