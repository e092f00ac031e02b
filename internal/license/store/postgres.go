package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	holdermodels "vialidad/internal/holder/models"
	"vialidad/internal/license/models"
	"vialidad/pkg/platform/sentinel"
	"vialidad/pkg/platform/tx"
)

const licenseColumns = `
	id, holder_id, class, validity_years, issued_at, expires_at, cost,
	copy_number, copy_reason, original_id, operator_id, active, created_at, updated_at`

// Postgres persists license records in the licenses table. A partial unique
// index on (holder_id, class) for active non-copy rows backstops the
// one-active-license invariant against concurrent issuance.
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

func (s *Postgres) Create(ctx context.Context, license *models.License) error {
	const query = `
		INSERT INTO licenses (` + licenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		license.ID, license.HolderID, license.Class, license.ValidityYears,
		license.IssuedAt, license.ExpiresAt, license.Cost,
		license.CopyNumber, nullableString(license.CopyReason), nullableUUID(license.OriginalID),
		license.OperatorID, license.Active, license.CreatedAt, license.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	const query = `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1`

	license, err := scanLicense(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return license, nil
}

func (s *Postgres) Update(ctx context.Context, license *models.License) error {
	const query = `
		UPDATE licenses
		SET active = $2, updated_at = $3
		WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query, license.ID, license.Active, license.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update license rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ExistsActiveNonExpired(ctx context.Context, holderID uuid.UUID, class models.Class, asOf time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM licenses
			WHERE holder_id = $1 AND class = $2 AND active AND copy_number = 0 AND expires_at >= $3
		)`

	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, holderID, class, asOf).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active license: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ExistsByHolderAndClass(ctx context.Context, holderID uuid.UUID, class models.Class) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM licenses
			WHERE holder_id = $1 AND class = $2 AND copy_number = 0
		)`

	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, holderID, class).Scan(&exists); err != nil {
		return false, fmt.Errorf("check holder class history: %w", err)
	}
	return exists, nil
}

func (s *Postgres) FindByHolderAndClass(ctx context.Context, holderID uuid.UUID, class models.Class) ([]*models.License, error) {
	const query = `
		SELECT ` + licenseColumns + `
		FROM licenses
		WHERE holder_id = $1 AND class = $2
		ORDER BY issued_at DESC, id`

	return s.queryLicenses(ctx, query, holderID, class)
}

func (s *Postgres) FindByExpiryBefore(ctx context.Context, date time.Time) ([]*models.License, error) {
	const query = `
		SELECT ` + licenseColumns + `
		FROM licenses
		WHERE expires_at < $1
		ORDER BY issued_at DESC, id`

	return s.queryLicenses(ctx, query, date)
}

func (s *Postgres) CountByExpiryBefore(ctx context.Context, date time.Time) (int64, error) {
	const query = `SELECT count(*) FROM licenses WHERE expires_at < $1`

	var n int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, date).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expired licenses: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountAll(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM licenses`

	var n int64
	if err := s.execer(ctx).QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count licenses: %w", err)
	}
	return n, nil
}

func (s *Postgres) FindByHolderDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) ([]*models.License, error) {
	const query = `
		SELECT l.id, l.holder_id, l.class, l.validity_years, l.issued_at, l.expires_at, l.cost,
		       l.copy_number, l.copy_reason, l.original_id, l.operator_id, l.active, l.created_at, l.updated_at
		FROM licenses l
		JOIN holders h ON h.id = l.holder_id
		WHERE h.document_type = $1 AND h.document_number = $2
		ORDER BY l.issued_at DESC, l.id`

	return s.queryLicenses(ctx, query, docType, docNumber)
}

func (s *Postgres) ActiveHolderIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	const query = `
		SELECT DISTINCT holder_id FROM licenses
		WHERE active AND expires_at >= $1`

	rows, err := s.execer(ctx).QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("query active holders: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan holder id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active holders: %w", err)
	}
	return out, nil
}

func (s *Postgres) BulkDeactivateExpired(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `
		UPDATE licenses
		SET active = false, updated_at = now()
		WHERE active AND expires_at < $1`

	res, err := s.execer(ctx).ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired licenses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired rows affected: %w", err)
	}
	return affected, nil
}

func (s *Postgres) queryLicenses(ctx context.Context, query string, args ...any) ([]*models.License, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query licenses: %w", err)
	}
	defer rows.Close()

	var out []*models.License
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, license)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*models.License, error) {
	var license models.License
	var copyReason sql.NullString
	var originalID uuid.NullUUID
	err := row.Scan(
		&license.ID, &license.HolderID, &license.Class, &license.ValidityYears,
		&license.IssuedAt, &license.ExpiresAt, &license.Cost,
		&license.CopyNumber, &copyReason, &originalID,
		&license.OperatorID, &license.Active, &license.CreatedAt, &license.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan license: %w", err)
	}
	license.CopyReason = copyReason.String
	if originalID.Valid {
		id := originalID.UUID
		license.OriginalID = &id
	}
	return &license, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
