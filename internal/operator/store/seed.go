package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vialidad/internal/operator/models"
	"vialidad/pkg/platform/sentinel"
)

// SeedDefaultOperators creates the bootstrap staff accounts so a fresh
// deployment can log in. Both passwords must be rotated on first use.
func SeedDefaultOperators(ctx context.Context, operators Accounts) error {
	now := time.Now()
	accounts := []struct {
		email    string
		fullName string
		password string
		roles    []models.Role
	}{
		{"admin@municipio.gob", "Administrador del Registro", "admin123", []models.Role{models.RoleAdmin, models.RoleOperator}},
		{"operador@municipio.gob", "Operador de Ventanilla", "operador", []models.Role{models.RoleOperator}},
	}

	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		err = operators.Create(ctx, &models.Operator{
			ID:           uuid.New(),
			Email:        a.email,
			FullName:     a.fullName,
			PasswordHash: string(hash),
			Roles:        a.roles,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return nil
}
