package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vialidad/internal/operator/models"
	"vialidad/pkg/platform/sentinel"
)

// InMemory keeps operator accounts in process memory. Used by tests and the
// memory-backed server mode.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Operator
	byEmail map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[uuid.UUID]*models.Operator),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, operator *models.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(operator.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *operator
	s.byID[operator.ID] = &cp
	s.byEmail[key] = operator.ID
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operator, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *operator
	return &cp, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
