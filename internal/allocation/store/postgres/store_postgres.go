// Package postgres persists allocations in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"laurel/internal/allocation"
	"laurel/internal/classifier"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

// Schema is the DDL for the allocations table.
const Schema = `
CREATE TABLE IF NOT EXISTS allocations (
	contribution_id TEXT PRIMARY KEY,
	epoch_index BIGINT NOT NULL,
	tier TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount > 0),
	allocated_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore is pure I/O; idempotency rides on the primary key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, alloc *allocation.TokenAllocation) error {
	query := `
		INSERT INTO allocations (contribution_id, epoch_index, tier, amount, allocated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contribution_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		alloc.ContributionID.String(),
		int64(alloc.EpochIndex),
		alloc.Tier.String(),
		alloc.Amount,
		alloc.AllocatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("allocation for %s: %w", alloc.ContributionID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByContribution(ctx context.Context, contributionID domain.ContributionID) (*allocation.TokenAllocation, error) {
	query := `
		SELECT contribution_id, epoch_index, tier, amount, allocated_at
		FROM allocations
		WHERE contribution_id = $1
	`
	var (
		alloc      allocation.TokenAllocation
		rawID      string
		epochIndex int64
		tierName   string
	)
	err := s.db.QueryRowContext(ctx, query, contributionID.String()).
		Scan(&rawID, &epochIndex, &tierName, &alloc.Amount, &alloc.AllocatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("allocation for %s: %w", contributionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find allocation: %w", err)
	}

	id, err := domain.ParseContributionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored contribution id: %w", err)
	}
	tier, err := classifier.ParseTier(tierName)
	if err != nil {
		return nil, fmt.Errorf("parse stored tier: %w", err)
	}
	alloc.ContributionID = id
	alloc.EpochIndex = uint64(epochIndex)
	alloc.Tier = tier
	return &alloc, nil
}

func (s *PostgresStore) TotalAllocated(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM allocations`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum allocations: %w", err)
	}
	return total, nil
}
