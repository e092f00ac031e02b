package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	holdermodels "vialidad/internal/holder/models"
	"vialidad/internal/license/models"
	"vialidad/pkg/platform/sentinel"
)

// HolderDirectory resolves holders by document so the in-memory store can
// answer document-scoped queries without a SQL join.
type HolderDirectory interface {
	FindByDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) (*holdermodels.Holder, error)
}

// InMemory keeps license records in process memory. Used by tests and the
// memory-backed server mode.
type InMemory struct {
	mu       sync.RWMutex
	licenses map[uuid.UUID]*models.License
	holders  HolderDirectory
}

func NewInMemory(holders HolderDirectory) *InMemory {
	return &InMemory{
		licenses: make(map[uuid.UUID]*models.License),
		holders:  holders,
	}
}

func (s *InMemory) Create(_ context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.licenses[license.ID]; exists {
		return sentinel.ErrConflict
	}
	// Mirror the partial unique index on (holder_id, class) for active non-copies.
	if !license.IsCopy() && license.Active {
		for _, l := range s.licenses {
			if l.HolderID == license.HolderID && l.Class == license.Class && l.Active && !l.IsCopy() {
				return sentinel.ErrConflict
			}
		}
	}
	cp := *license
	s.licenses[license.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	license, ok := s.licenses[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *license
	return &cp, nil
}

func (s *InMemory) Update(_ context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenses[license.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *license
	s.licenses[license.ID] = &cp
	return nil
}

func (s *InMemory) ExistsActiveNonExpired(_ context.Context, holderID uuid.UUID, class models.Class, asOf time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.licenses {
		if l.HolderID == holderID && l.Class == class && l.Active && !l.IsCopy() && !l.ExpiresAt.Before(asOf) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ExistsByHolderAndClass(_ context.Context, holderID uuid.UUID, class models.Class) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.licenses {
		if l.HolderID == holderID && l.Class == class && !l.IsCopy() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) FindByHolderAndClass(_ context.Context, holderID uuid.UUID, class models.Class) ([]*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.License
	for _, l := range s.licenses {
		if l.HolderID == holderID && l.Class == class {
			cp := *l
			out = append(out, &cp)
		}
	}
	sortByIssue(out)
	return out, nil
}

func (s *InMemory) FindByExpiryBefore(_ context.Context, date time.Time) ([]*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.License
	for _, l := range s.licenses {
		if l.ExpiresAt.Before(date) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sortByIssue(out)
	return out, nil
}

func (s *InMemory) CountByExpiryBefore(_ context.Context, date time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, l := range s.licenses {
		if l.ExpiresAt.Before(date) {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.licenses)), nil
}

func (s *InMemory) FindByHolderDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) ([]*models.License, error) {
	holder, err := s.holders.FindByDocument(ctx, docType, docNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.License
	for _, l := range s.licenses {
		if l.HolderID == holder.ID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sortByIssue(out)
	return out, nil
}

func (s *InMemory) ActiveHolderIDs(_ context.Context, asOf time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, l := range s.licenses {
		if l.Active && !l.ExpiresAt.Before(asOf) {
			if _, ok := seen[l.HolderID]; !ok {
				seen[l.HolderID] = struct{}{}
				out = append(out, l.HolderID)
			}
		}
	}
	return out, nil
}

func (s *InMemory) BulkDeactivateExpired(_ context.Context, asOf time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, l := range s.licenses {
		if l.Active && l.ExpiresAt.Before(asOf) {
			l.Active = false
			l.UpdatedAt = asOf
			n++
		}
	}
	return n, nil
}

// sortByIssue keeps listings deterministic: newest first, ID as tiebreaker.
func sortByIssue(licenses []*models.License) {
	sort.Slice(licenses, func(i, j int) bool {
		if !licenses[i].IssuedAt.Equal(licenses[j].IssuedAt) {
			return licenses[i].IssuedAt.After(licenses[j].IssuedAt)
		}
		return licenses[i].ID.String() < licenses[j].ID.String()
	})
}
