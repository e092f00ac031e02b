package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vialidad/internal/holder/models"
	"vialidad/pkg/platform/sentinel"
)

// InMemory keeps holder records in process memory. Used by tests and the
// memory-backed server mode.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*models.Holder
	byDocument map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[uuid.UUID]*models.Holder),
		byDocument: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, holder *models.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := documentKey(holder.DocumentType, holder.DocumentNumber)
	if _, exists := s.byDocument[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *holder
	s.byID[holder.ID] = &cp
	s.byDocument[key] = holder.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holder, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *holder
	return &cp, nil
}

func (s *InMemory) FindByDocument(_ context.Context, docType models.DocumentType, docNumber string) (*models.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDocument[documentKey(docType, docNumber)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemory) Update(_ context.Context, holder *models.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[holder.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// The document identity is immutable once registered.
	delete(s.byDocument, documentKey(existing.DocumentType, existing.DocumentNumber))
	cp := *holder
	s.byID[holder.ID] = &cp
	s.byDocument[documentKey(holder.DocumentType, holder.DocumentNumber)] = holder.ID
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holder, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byDocument, documentKey(holder.DocumentType, holder.DocumentNumber))
	delete(s.byID, id)
	return nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Holder, 0, len(s.byID))
	for _, h := range s.byID {
		cp := *h
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

func documentKey(docType models.DocumentType, docNumber string) string {
	return string(docType) + ":" + strings.TrimSpace(docNumber)
}
