package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vialidad/internal/holder/models"
	"vialidad/pkg/platform/sentinel"
	"vialidad/pkg/platform/tx"
)

const holderColumns = `
	id, first_name, last_name, birth_date, document_type, document_number,
	blood_group, rh_factor, address, organ_donor, created_at, updated_at`

// Postgres persists holder records in the holders table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) execer {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, holder *models.Holder) error {
	const query = `
		INSERT INTO holders (` + holderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		holder.ID, holder.FirstName, holder.LastName, holder.BirthDate,
		holder.DocumentType, holder.DocumentNumber,
		holder.BloodGroup, holder.RhFactor, holder.Address, holder.OrganDonor,
		holder.CreatedAt, holder.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert holder: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Holder, error) {
	const query = `SELECT ` + holderColumns + ` FROM holders WHERE id = $1`

	return scanHolder(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *Postgres) FindByDocument(ctx context.Context, docType models.DocumentType, docNumber string) (*models.Holder, error) {
	const query = `
		SELECT ` + holderColumns + `
		FROM holders
		WHERE document_type = $1 AND document_number = $2`

	return scanHolder(s.execer(ctx).QueryRowContext(ctx, query, docType, docNumber))
}

func (s *Postgres) Update(ctx context.Context, holder *models.Holder) error {
	const query = `
		UPDATE holders
		SET first_name = $2, last_name = $3, birth_date = $4,
		    blood_group = $5, rh_factor = $6, address = $7, organ_donor = $8,
		    updated_at = $9
		WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		holder.ID, holder.FirstName, holder.LastName, holder.BirthDate,
		holder.BloodGroup, holder.RhFactor, holder.Address, holder.OrganDonor,
		holder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update holder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update holder rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM holders WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete holder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete holder rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Holder, error) {
	const query = `
		SELECT ` + holderColumns + `
		FROM holders
		ORDER BY last_name, first_name`

	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	var out []*models.Holder
	for rows.Next() {
		holder, err := scanHolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, holder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holders: %w", err)
	}
	return out, nil
}

func (s *Postgres) Count(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM holders`

	var n int64
	if err := s.execer(ctx).QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count holders: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolder(row rowScanner) (*models.Holder, error) {
	var holder models.Holder
	err := row.Scan(
		&holder.ID, &holder.FirstName, &holder.LastName, &holder.BirthDate,
		&holder.DocumentType, &holder.DocumentNumber,
		&holder.BloodGroup, &holder.RhFactor, &holder.Address, &holder.OrganDonor,
		&holder.CreatedAt, &holder.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan holder: %w", err)
	}
	return &holder, nil
}
