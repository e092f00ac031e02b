package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"vialidad/internal/audit"
	"vialidad/internal/holder/models"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/sentinel"
	"vialidad/pkg/requestcontext"
)

// Store is the holder persistence collaborator.
type Store interface {
	Create(ctx context.Context, holder *models.Holder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Holder, error)
	FindByDocument(ctx context.Context, docType models.DocumentType, docNumber string) (*models.Holder, error)
	Update(ctx context.Context, holder *models.Holder) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Holder, error)
	Count(ctx context.Context) (int64, error)
}

// AuditPublisher records holder lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LicenseDirectory answers which holders currently hold an active,
// unexpired license. Implemented by the license store.
type LicenseDirectory interface {
	ActiveHolderIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// Service manages the holder registry. Holders are identified by their
// (document type, document number) pair; the internal UUID never leaves
// the API unexplained.
type Service struct {
	store     Store
	licenses  LicenseDirectory
	logger    *slog.Logger
	publisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLicenseDirectory enables the active-license holder search.
func WithLicenseDirectory(licenses LicenseDirectory) Option {
	return func(s *Service) {
		s.licenses = licenses
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields needed to register a holder.
type CreateRequest struct {
	FirstName      string
	LastName       string
	BirthDate      string
	DocumentType   models.DocumentType
	DocumentNumber string
	BloodGroup     models.BloodGroup
	RhFactor       models.RhFactor
	Address        string
	OrganDonor     bool
}

// Create registers a new holder. The (document type, number) pair must be
// unique across the registry.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Holder, error) {
	now := requestcontext.Now(ctx)

	birthDate, err := models.ParseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	holder, err := models.NewHolder(uuid.New(), req.FirstName, req.LastName, birthDate,
		req.DocumentType, req.DocumentNumber, req.BloodGroup, req.RhFactor,
		req.Address, req.OrganDonor, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, holder); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("a holder with document %s %s is already registered", req.DocumentType, req.DocumentNumber))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist holder")
	}

	s.emit(ctx, audit.Event{
		Action:   audit.ActionHolderCreated,
		Operator: requestcontext.OperatorEmail(ctx),
		HolderID: holder.ID.String(),
		Detail:   fmt.Sprintf("%s %s", holder.DocumentType, holder.DocumentNumber),
	})
	s.logger.InfoContext(ctx, "holder created", "holder_id", holder.ID, "document_type", holder.DocumentType)
	return holder, nil
}

// GetByDocument resolves a holder by identity document.
func (s *Service) GetByDocument(ctx context.Context, docType models.DocumentType, docNumber string) (*models.Holder, error) {
	holder, err := s.store.FindByDocument(ctx, docType, docNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no holder with document %s %s", docType, docNumber))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
	}
	return holder, nil
}

// UpdateRequest carries the mutable holder fields. Nil means unchanged.
// The document identity itself is immutable.
type UpdateRequest struct {
	FirstName  *string
	LastName   *string
	BirthDate  *string
	BloodGroup *models.BloodGroup
	RhFactor   *models.RhFactor
	Address    *string
	OrganDonor *bool
}

// UpdateByDocument applies a partial update to the holder with the given
// document.
func (s *Service) UpdateByDocument(ctx context.Context, docType models.DocumentType, docNumber string, req UpdateRequest) (*models.Holder, error) {
	now := requestcontext.Now(ctx)

	holder, err := s.GetByDocument(ctx, docType, docNumber)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		holder.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		holder.LastName = *req.LastName
	}
	if req.BirthDate != nil {
		birthDate, err := models.ParseBirthDate(*req.BirthDate)
		if err != nil {
			return nil, err
		}
		if !birthDate.Before(now) {
			return nil, dErrors.New(dErrors.CodeValidation, "birth date must be in the past")
		}
		holder.BirthDate = birthDate
	}
	if req.BloodGroup != nil {
		holder.BloodGroup = *req.BloodGroup
	}
	if req.RhFactor != nil {
		holder.RhFactor = *req.RhFactor
	}
	if req.Address != nil {
		holder.Address = *req.Address
	}
	if req.OrganDonor != nil {
		holder.OrganDonor = *req.OrganDonor
	}
	holder.UpdatedAt = now

	if err := s.store.Update(ctx, holder); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update holder")
	}

	s.emit(ctx, audit.Event{
		Action:   audit.ActionHolderUpdated,
		Operator: requestcontext.OperatorEmail(ctx),
		HolderID: holder.ID.String(),
	})
	s.logger.InfoContext(ctx, "holder updated", "holder_id", holder.ID)
	return holder, nil
}

// DeleteByDocument removes a holder record. The storage layer rejects the
// delete while license rows still reference the holder.
func (s *Service) DeleteByDocument(ctx context.Context, docType models.DocumentType, docNumber string) error {
	holder, err := s.GetByDocument(ctx, docType, docNumber)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, holder.ID); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "holder has issued licenses and cannot be deleted")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete holder")
	}
	s.logger.InfoContext(ctx, "holder deleted", "holder_id", holder.ID)
	return nil
}

// List returns all registered holders ordered by name.
func (s *Service) List(ctx context.Context) ([]*models.Holder, error) {
	holders, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holders")
	}
	return holders, nil
}

// GetByID resolves a holder by internal id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Holder, error) {
	holder, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no holder with id "+id.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
	}
	return holder, nil
}

// SearchFilter narrows the active-license holder search. Zero values match
// everything.
type SearchFilter struct {
	Name        string
	BloodGroups []models.BloodGroup
	RhFactor    *models.RhFactor
	DonorsOnly  bool
}

func (f SearchFilter) matches(holder *models.Holder) bool {
	if f.Name != "" {
		name := strings.ToLower(f.Name)
		if !strings.Contains(strings.ToLower(holder.FirstName), name) &&
			!strings.Contains(strings.ToLower(holder.LastName), name) {
			return false
		}
	}
	if len(f.BloodGroups) > 0 && !slices.Contains(f.BloodGroups, holder.BloodGroup) {
		return false
	}
	if f.RhFactor != nil && holder.RhFactor != *f.RhFactor {
		return false
	}
	if f.DonorsOnly && !holder.OrganDonor {
		return false
	}
	return true
}

// SearchWithActiveLicenses returns holders of at least one active, unexpired
// license that match the filter, in name order.
func (s *Service) SearchWithActiveLicenses(ctx context.Context, filter SearchFilter) ([]*models.Holder, error) {
	if s.licenses == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "license directory is not configured")
	}
	// Day granularity: a license expiring today still counts as active.
	now := requestcontext.Now(ctx)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	ids, err := s.licenses.ActiveHolderIDs(ctx, today)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active license holders")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	active := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		active[id] = struct{}{}
	}

	holders, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holders")
	}
	var out []*models.Holder
	for _, holder := range holders {
		if _, ok := active[holder.ID]; ok && filter.matches(holder) {
			out = append(out, holder)
		}
	}
	return out, nil
}

// Count returns how many holders are registered.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count holders")
	}
	return n, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
