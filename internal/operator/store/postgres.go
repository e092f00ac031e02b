package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vialidad/internal/operator/models"
	"vialidad/pkg/platform/sentinel"
	"vialidad/pkg/platform/tx"
)

// Postgres persists operator accounts in the operators table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) execer {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, operator *models.Operator) error {
	const query = `
		INSERT INTO operators (id, email, full_name, password_hash, roles, active, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		operator.ID, operator.Email, operator.FullName, operator.PasswordHash,
		pq.Array(operator.RoleStrings()), operator.Active, operator.CreatedAt, operator.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	const query = `
		SELECT id, email, full_name, password_hash, roles, active, created_at, updated_at
		FROM operators
		WHERE email = lower($1)`

	return s.scanOperator(s.execer(ctx).QueryRowContext(ctx, query, email))
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	const query = `
		SELECT id, email, full_name, password_hash, roles, active, created_at, updated_at
		FROM operators
		WHERE id = $1`

	return s.scanOperator(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *Postgres) scanOperator(row *sql.Row) (*models.Operator, error) {
	var operator models.Operator
	var roles []string
	err := row.Scan(
		&operator.ID, &operator.Email, &operator.FullName, &operator.PasswordHash,
		pq.Array(&roles), &operator.Active, &operator.CreatedAt, &operator.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	operator.Roles = make([]models.Role, len(roles))
	for i, r := range roles {
		operator.Roles[i] = models.Role(r)
	}
	return &operator, nil
}
