// Package postgres persists certificates in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"laurel/internal/certificate/models"
	"laurel/internal/classifier"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

// Schema is the DDL for the certificates table.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
	contribution_id TEXT PRIMARY KEY,
	contributor_id UUID NOT NULL,
	tier TEXT NOT NULL,
	amount BIGINT NOT NULL,
	epoch_index BIGINT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	on_chain_ref TEXT
);
CREATE INDEX IF NOT EXISTS certificates_contributor ON certificates (contributor_id);
`

// PostgresStore is pure I/O; the primary key carries the at-most-one
// invariant and AttachRef's guarded UPDATE carries the enrichment rules.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certificateColumns = "contribution_id, contributor_id, tier, amount, epoch_index, registered_at, on_chain_ref"

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (contribution_id, contributor_id, tier, amount, epoch_index, registered_at, on_chain_ref)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (contribution_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		cert.ContributionID.String(),
		cert.ContributorID.String(),
		cert.Tier.String(),
		cert.Amount,
		int64(cert.EpochIndex),
		cert.RegisteredAt,
		cert.OnChainRef,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("certificate for %s: %w", cert.ContributionID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByContribution(ctx context.Context, contributionID domain.ContributionID) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE contribution_id = $1`
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, contributionID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("certificate for %s: %w", contributionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return cert, nil
}

// AttachRef updates the ref only when the row has none or already holds the
// same value, so the enrichment stays idempotent under concurrency.
func (s *PostgresStore) AttachRef(ctx context.Context, contributionID domain.ContributionID, ref string) (*models.Certificate, error) {
	query := `
		UPDATE certificates
		SET on_chain_ref = $2
		WHERE contribution_id = $1 AND (on_chain_ref IS NULL OR on_chain_ref = $2)
		RETURNING ` + certificateColumns
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, contributionID.String(), ref))
	if err == nil {
		return cert, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attach ref: %w", err)
	}

	// No row matched: either the certificate is missing or it holds a
	// different ref.
	if _, findErr := s.FindByContribution(ctx, contributionID); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("certificate for %s already anchored: %w", contributionID, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert           models.Certificate
		rawID          string
		rawContributor string
		tierName       string
		epochIndex     int64
		onChainRef     sql.NullString
	)
	err := row.Scan(&rawID, &rawContributor, &tierName, &cert.Amount, &epochIndex, &cert.RegisteredAt, &onChainRef)
	if err != nil {
		return nil, err
	}

	id, err := domain.ParseContributionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored contribution id: %w", err)
	}
	contributor, err := domain.ParseContributorID(rawContributor)
	if err != nil {
		return nil, fmt.Errorf("parse stored contributor id: %w", err)
	}
	tier, err := classifier.ParseTier(tierName)
	if err != nil {
		return nil, fmt.Errorf("parse stored tier: %w", err)
	}

	cert.ContributionID = id
	cert.ContributorID = contributor
	cert.Tier = tier
	cert.EpochIndex = uint64(epochIndex)
	if onChainRef.Valid {
		cert.OnChainRef = onChainRef.String
	}
	return &cert, nil
}
