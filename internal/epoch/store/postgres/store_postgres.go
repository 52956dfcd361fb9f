// Package postgres persists the epoch sequence in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"laurel/internal/classifier"
	"laurel/internal/epoch/models"
	"laurel/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Schema is the DDL for the epochs table. The partial unique index enforces
// the single-active-epoch invariant at the storage layer.
const Schema = `
CREATE TABLE IF NOT EXISTS epochs (
	idx BIGINT PRIMARY KEY,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ,
	initial_budget BIGINT NOT NULL,
	emission_budget BIGINT NOT NULL CHECK (emission_budget >= 0),
	thresholds JSONB NOT NULL,
	decay_factor DOUBLE PRECISION NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS epochs_single_active ON epochs ((1)) WHERE status = 'active';
`

// PostgresStore is pure I/O; budget arithmetic and transition rules live in
// the model callbacks it runs under SELECT FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const epochColumns = "idx, status, started_at, closed_at, initial_budget, emission_budget, thresholds, decay_factor"

func (s *PostgresStore) Insert(ctx context.Context, epoch *models.Epoch) error {
	thresholds, err := json.Marshal(epoch.Thresholds)
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}
	query := `
		INSERT INTO epochs (idx, status, started_at, closed_at, initial_budget, emission_budget, thresholds, decay_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		int64(epoch.Index),
		string(epoch.Status),
		epoch.StartedAt,
		epoch.ClosedAt,
		epoch.InitialBudget,
		epoch.EmissionBudget,
		thresholds,
		epoch.DecayFactor,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("epoch %d: %w", epoch.Index, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert epoch: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIndex(ctx context.Context, index uint64) (*models.Epoch, error) {
	query := `SELECT ` + epochColumns + ` FROM epochs WHERE idx = $1`
	epoch, err := scanEpoch(s.db.QueryRowContext(ctx, query, int64(index)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("epoch %d: %w", index, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find epoch: %w", err)
	}
	return epoch, nil
}

func (s *PostgresStore) FindActive(ctx context.Context) (*models.Epoch, error) {
	query := `SELECT ` + epochColumns + ` FROM epochs WHERE status = $1`
	epoch, err := scanEpoch(s.db.QueryRowContext(ctx, query, string(models.StatusActive)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active epoch: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find active epoch: %w", err)
	}
	return epoch, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Epoch, error) {
	query := `SELECT ` + epochColumns + ` FROM epochs ORDER BY idx`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	defer rows.Close()

	var out []*models.Epoch
	for rows.Next() {
		epoch, err := scanEpoch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		out = append(out, epoch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	return out, nil
}

// Execute locks the epoch row, runs validate then mutate, and persists the
// result. SELECT FOR UPDATE makes the budget update a single-writer section.
func (s *PostgresStore) Execute(ctx context.Context, index uint64, validate func(*models.Epoch) error, mutate func(*models.Epoch)) (*models.Epoch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin epoch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + epochColumns + ` FROM epochs WHERE idx = $1 FOR UPDATE`
	epoch, err := scanEpoch(tx.QueryRowContext(ctx, query, int64(index)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("epoch %d: %w", index, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock epoch: %w", err)
	}

	if err := validate(epoch); err != nil {
		return nil, err
	}
	mutate(epoch)

	if err := s.update(ctx, tx, epoch); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit epoch tx: %w", err)
	}
	return epoch, nil
}

func (s *PostgresStore) Advance(ctx context.Context, closeIndex uint64, closedAt time.Time, next *models.Epoch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + epochColumns + ` FROM epochs WHERE idx = $1 FOR UPDATE`
	current, err := scanEpoch(tx.QueryRowContext(ctx, query, int64(closeIndex)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("epoch %d: %w", closeIndex, sentinel.ErrNotFound)
		}
		return fmt.Errorf("lock epoch: %w", err)
	}
	if !current.IsActive() {
		return fmt.Errorf("epoch %d is closed: %w", closeIndex, sentinel.ErrInvalidState)
	}

	current.ApplyClose(closedAt)
	if err := s.update(ctx, tx, current); err != nil {
		return err
	}

	thresholds, err := json.Marshal(next.Thresholds)
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}
	insert := `
		INSERT INTO epochs (idx, status, started_at, closed_at, initial_budget, emission_budget, thresholds, decay_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, insert,
		int64(next.Index),
		string(next.Status),
		next.StartedAt,
		next.ClosedAt,
		next.InitialBudget,
		next.EmissionBudget,
		thresholds,
		next.DecayFactor,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("epoch %d: %w", next.Index, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert next epoch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advance tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, tx *sql.Tx, epoch *models.Epoch) error {
	query := `
		UPDATE epochs
		SET status = $2, closed_at = $3, emission_budget = $4
		WHERE idx = $1
	`
	_, err := tx.ExecContext(ctx, query,
		int64(epoch.Index),
		string(epoch.Status),
		epoch.ClosedAt,
		epoch.EmissionBudget,
	)
	if err != nil {
		return fmt.Errorf("update epoch: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpoch(row rowScanner) (*models.Epoch, error) {
	var (
		epoch      models.Epoch
		index      int64
		status     string
		closedAt   sql.NullTime
		thresholds []byte
	)
	err := row.Scan(&index, &status, &epoch.StartedAt, &closedAt, &epoch.InitialBudget, &epoch.EmissionBudget, &thresholds, &epoch.DecayFactor)
	if err != nil {
		return nil, err
	}
	epoch.Index = uint64(index)
	epoch.Status = models.Status(status)
	if closedAt.Valid {
		t := closedAt.Time
		epoch.ClosedAt = &t
	}
	epoch.Thresholds = classifier.ThresholdTable{}
	if err := json.Unmarshal(thresholds, &epoch.Thresholds); err != nil {
		return nil, fmt.Errorf("unmarshal thresholds: %w", err)
	}
	return &epoch, nil
}
