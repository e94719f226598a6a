package rulesets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore implements Store backed by the rulesets table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a PostgreSQL-backed ruleset store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Publish inserts a new active version and deactivates prior ones in one transaction.
func (s *PostgresStore) Publish(ctx context.Context, rs *Ruleset) error {
	record, err := prepare(rs, s.now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		UPDATE rulesets
		SET is_active = false
		WHERE scholarship_id = $1 AND is_active = true
	`, record.ScholarshipID)
	if err != nil {
		return fmt.Errorf("failed to deactivate previous rulesets: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rulesets (id, scholarship_id, version, json, is_active, created_at)
		VALUES ($1, $2, $3, $4, true, $5)
	`, record.ID, record.ScholarshipID, record.Version, record.JSON, record.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s@%s", ErrVersionExists, record.ScholarshipID, record.Version)
		}
		return fmt.Errorf("failed to insert ruleset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ruleset: %w", err)
	}
	*rs = record
	return nil
}

// Active returns the newest active version for a scholarship.
func (s *PostgresStore) Active(ctx context.Context, scholarshipID string) (*Ruleset, error) {
	var rs Ruleset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scholarship_id, version, json, is_active, created_at
		FROM rulesets
		WHERE scholarship_id = $1 AND is_active = true
		ORDER BY created_at DESC, id ASC
		LIMIT 1
	`, scholarshipID).Scan(
		&rs.ID,
		&rs.ScholarshipID,
		&rs.Version,
		&rs.JSON,
		&rs.IsActive,
		&rs.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scholarshipID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active ruleset: %w", err)
	}

	return &rs, nil
}

// List returns every version of a scholarship's rules, newest first.
func (s *PostgresStore) List(ctx context.Context, scholarshipID string) ([]*Ruleset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scholarship_id, version, json, is_active, created_at
		FROM rulesets
		WHERE scholarship_id = $1
		ORDER BY created_at DESC, id ASC
	`, scholarshipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rulesets: %w", err)
	}
	defer rows.Close()

	list := []*Ruleset{}
	for rows.Next() {
		var rs Ruleset
		if err := rows.Scan(&rs.ID, &rs.ScholarshipID, &rs.Version, &rs.JSON,
			&rs.IsActive, &rs.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ruleset: %w", err)
		}
		list = append(list, &rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rulesets: %w", err)
	}

	return list, nil
}
