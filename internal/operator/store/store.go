package store

import (
	"context"

	"github.com/google/uuid"

	"vialidad/internal/operator/models"
)

// Accounts is the operator persistence surface shared by both backends.
type Accounts interface {
	Create(ctx context.Context, operator *models.Operator) error
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
}
