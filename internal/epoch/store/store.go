// Package store defines the epoch persistence contract.
package store

import (
	"context"
	"time"

	"laurel/internal/epoch/models"
)

// Store persists the append-only epoch sequence.
//
// Execute is the single-writer critical section for one epoch's budget: the
// implementation holds its lock (mutex or SELECT FOR UPDATE) across both
// callbacks, so validate-then-mutate is atomic. Advance atomically closes
// the named active epoch and inserts its successor.
type Store interface {
	// Insert adds a new epoch. Returns sentinel.ErrConflict if the index
	// already exists.
	Insert(ctx context.Context, epoch *models.Epoch) error

	// FindByIndex returns the epoch with the given index or
	// sentinel.ErrNotFound.
	FindByIndex(ctx context.Context, index uint64) (*models.Epoch, error)

	// FindActive returns the single active epoch or sentinel.ErrNotFound
	// before genesis.
	FindActive(ctx context.Context) (*models.Epoch, error)

	// List returns all epochs ordered by index.
	List(ctx context.Context) ([]*models.Epoch, error)

	// Execute runs validate then mutate on the named epoch under the
	// store's exclusive access. The mutated epoch is persisted and
	// returned; a validate error aborts without side effect.
	Execute(ctx context.Context, index uint64, validate func(*models.Epoch) error, mutate func(*models.Epoch)) (*models.Epoch, error)

	// Advance atomically closes the epoch at closeIndex and inserts next.
	// Returns sentinel.ErrInvalidState if that epoch is not active, and
	// sentinel.ErrConflict if next's index already exists.
	Advance(ctx context.Context, closeIndex uint64, closedAt time.Time, next *models.Epoch) error
}
