package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vialidad/internal/audit"
	holdermodels "vialidad/internal/holder/models"
	"vialidad/internal/license/metrics"
	"vialidad/internal/license/models"
	opmodels "vialidad/internal/operator/models"
	"vialidad/internal/tariff"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/sentinel"
	"vialidad/pkg/requestcontext"
)

// Store is the license persistence collaborator. Implementations must honor
// an in-context SQL transaction where one is present.
type Store interface {
	Create(ctx context.Context, license *models.License) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	Update(ctx context.Context, license *models.License) error
	ExistsActiveNonExpired(ctx context.Context, holderID uuid.UUID, class models.Class, asOf time.Time) (bool, error)
	ExistsByHolderAndClass(ctx context.Context, holderID uuid.UUID, class models.Class) (bool, error)
	FindByHolderAndClass(ctx context.Context, holderID uuid.UUID, class models.Class) ([]*models.License, error)
	FindByExpiryBefore(ctx context.Context, date time.Time) ([]*models.License, error)
	CountByExpiryBefore(ctx context.Context, date time.Time) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	FindByHolderDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) ([]*models.License, error)
	BulkDeactivateExpired(ctx context.Context, asOf time.Time) (int64, error)
}

// HolderStore resolves and updates license holders.
type HolderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*holdermodels.Holder, error)
	FindByDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) (*holdermodels.Holder, error)
	Update(ctx context.Context, holder *holdermodels.Holder) error
}

// OperatorStore resolves the staff account responsible for an operation.
type OperatorStore interface {
	FindByEmail(ctx context.Context, email string) (*opmodels.Operator, error)
}

// TxRunner provides the transactional boundary for multi-write operations.
// Implementations wrap a database transaction or, in-memory, a coarse lock.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher records lifecycle events. Emission failures never fail the
// operation that triggered them.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the license lifecycle engine. It decides whether a license may
// be issued, for how long, at what cost, and how renewals and copies
// supersede prior records.
type Service struct {
	licenses  Store
	holders   HolderStore
	operators OperatorStore
	txRunner  TxRunner
	costs     *tariff.Calculator
	copyFee   float64

	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the lifecycle engine. The cost calculator arrives fully
// loaded; the engine never reloads tariffs.
func New(licenses Store, holders HolderStore, operators OperatorStore, txRunner TxRunner, costs *tariff.Calculator, copyFee float64, opts ...Option) *Service {
	s := &Service{
		licenses:  licenses,
		holders:   holders,
		operators: operators,
		txRunner:  txRunner,
		costs:     costs,
		copyFee:   copyFee,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest asks for a brand-new license grant.
type IssueRequest struct {
	HolderID      uuid.UUID
	Class         models.Class
	OperatorEmail string
}

// Issue grants a new license for the holder and class, enforcing eligibility
// and the one-active-license-per-class invariant. The duplicate check and the
// insert run inside one transaction; the storage layer's partial unique index
// backstops the race between concurrent issuances.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.License, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	today := models.DateOf(now)

	var created *models.License
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		holder, err := s.holders.FindByID(ctx, req.HolderID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "holder not found: "+req.HolderID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
		}

		exists, err := s.licenses.ExistsActiveNonExpired(ctx, holder.ID, req.Class, today)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active licenses")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("holder %s already has an active class %s license; renew it instead", holder.ID, req.Class))
		}

		if err := s.validateEligibility(ctx, holder, req.Class, now); err != nil {
			return err
		}
		years, err := s.computeValidity(ctx, holder, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute validity period")
		}

		cost, err := s.costs.Cost(req.Class, years)
		if err != nil {
			return err
		}

		operator, err := s.operators.FindByEmail(ctx, req.OperatorEmail)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "issuing operator not found: "+req.OperatorEmail)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
		}

		license := &models.License{
			ID:            uuid.New(),
			HolderID:      holder.ID,
			Class:         req.Class,
			ValidityYears: years,
			IssuedAt:      today,
			ExpiresAt:     expiryDate(today, holder.BirthDate, years),
			Cost:          cost,
			OperatorID:    operator.ID,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.licenses.Create(ctx, license); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict,
					fmt.Sprintf("holder %s already has an active class %s license; renew it instead", holder.ID, req.Class))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist license")
		}
		created = license
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.Event{
		Action:    audit.ActionLicenseIssued,
		Operator:  req.OperatorEmail,
		HolderID:  created.HolderID.String(),
		LicenseID: created.ID.String(),
		Detail:    fmt.Sprintf("class %s, %d years", created.Class, created.ValidityYears),
	})
	if s.metrics != nil {
		s.metrics.IncrementIssued()
		s.metrics.ObserveIssue(start)
	}
	s.logger.InfoContext(ctx, "license issued",
		"license_id", created.ID,
		"holder_id", created.HolderID,
		"class", created.Class,
		"validity_years", created.ValidityYears,
	)
	return created, nil
}

// RenewRequest supersedes an existing license with a fresh record.
type RenewRequest struct {
	LicenseID    uuid.UUID
	Reason       models.RenewalReason
	NewFirstName *string
	NewLastName  *string
	NewAddress   *string
	CopyNumber   *int
	CopyReason   string
	OriginalID   *uuid.UUID
}

func (r RenewRequest) hasHolderChanges() bool {
	return r.NewFirstName != nil || r.NewLastName != nil || r.NewAddress != nil
}

// Renew deactivates the old license and creates its successor in one atomic
// unit: there is no window where both or neither are active. Validity and
// cost are recomputed against the holder's current age.
func (s *Service) Renew(ctx context.Context, req RenewRequest) (*models.License, error) {
	now := requestcontext.Now(ctx)
	today := models.DateOf(now)

	var renewed *models.License
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.licenses.FindByID(ctx, req.LicenseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "license not found: "+req.LicenseID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
		}

		if err := validateRenewalReason(old, req, now); err != nil {
			return err
		}

		holder, err := s.holders.FindByID(ctx, old.HolderID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
		}

		if req.Reason == models.RenewalDataChange {
			applyHolderChanges(holder, req, now)
			if err := s.holders.Update(ctx, holder); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update holder")
			}
		}

		years, err := s.computeValidity(ctx, holder, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute validity period")
		}
		cost, err := s.costs.Cost(old.Class, years)
		if err != nil {
			return err
		}

		var originalID *uuid.UUID
		if req.OriginalID != nil {
			original, err := s.licenses.FindByID(ctx, *req.OriginalID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "original license not found: "+req.OriginalID.String())
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load original license")
			}
			originalID = &original.ID
		}

		old.Deactivate(now)
		if err := s.licenses.Update(ctx, old); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate license")
		}

		successor := &models.License{
			ID:            uuid.New(),
			HolderID:      holder.ID,
			Class:         old.Class,
			ValidityYears: years,
			IssuedAt:      today,
			ExpiresAt:     expiryDate(today, holder.BirthDate, years),
			Cost:          cost,
			CopyReason:    req.CopyReason,
			OriginalID:    originalID,
			OperatorID:    old.OperatorID,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.CopyNumber != nil {
			successor.CopyNumber = *req.CopyNumber
		}
		if err := s.licenses.Create(ctx, successor); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "another active license exists for this class")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist renewed license")
		}
		renewed = successor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.Event{
		Action:    audit.ActionLicenseRenewed,
		Operator:  requestcontext.OperatorEmail(ctx),
		HolderID:  renewed.HolderID.String(),
		LicenseID: renewed.ID.String(),
		Detail:    fmt.Sprintf("reason %s, supersedes %s", req.Reason, req.LicenseID),
	})
	if s.metrics != nil {
		s.metrics.IncrementRenewed()
	}
	s.logger.InfoContext(ctx, "license renewed",
		"license_id", renewed.ID,
		"supersedes", req.LicenseID,
		"reason", req.Reason,
	)
	return renewed, nil
}

func validateRenewalReason(old *models.License, req RenewRequest, now time.Time) error {
	switch req.Reason {
	case models.RenewalExpired:
		if !old.IsExpired(now) {
			return dErrors.New(dErrors.CodeInvalidOperation,
				"cannot renew for expiry: license is valid until "+old.ExpiresAt.Format("2006-01-02"))
		}
	case models.RenewalDataChange:
		if !old.Active {
			return dErrors.New(dErrors.CodeInvalidOperation, "cannot renew an inactive license for a data change")
		}
		if old.IsExpired(now) {
			return dErrors.New(dErrors.CodeInvalidOperation, "cannot renew an expired license for a data change; use reason EXPIRED")
		}
		if !req.hasHolderChanges() {
			return dErrors.New(dErrors.CodeInvalidOperation, "data-change renewal requires at least one updated field")
		}
	default:
		return dErrors.New(dErrors.CodeInvalidOperation, "invalid renewal reason: "+string(req.Reason))
	}
	return nil
}

func applyHolderChanges(holder *holdermodels.Holder, req RenewRequest, now time.Time) {
	if req.NewFirstName != nil {
		holder.FirstName = *req.NewFirstName
	}
	if req.NewLastName != nil {
		holder.LastName = *req.NewLastName
	}
	if req.NewAddress != nil {
		holder.Address = *req.NewAddress
	}
	holder.UpdatedAt = now
}

// CopyRequest asks for a reissued physical copy of an unexpired license.
type CopyRequest struct {
	LicenseID     uuid.UUID
	Reason        string
	OperatorEmail string
}

// IssueCopy records a reissuance event. The copy carries the original's class,
// validity and expiry, a flat fee, and an incrementing copy sequence number.
// The original stays active; a copy deactivates nothing.
func (s *Service) IssueCopy(ctx context.Context, req CopyRequest) (*models.License, error) {
	now := requestcontext.Now(ctx)
	today := models.DateOf(now)

	var copyRec *models.License
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		original, err := s.licenses.FindByID(ctx, req.LicenseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "license not found: "+req.LicenseID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
		}
		if !original.Active || original.IsExpired(now) {
			return dErrors.New(dErrors.CodeInvalidOperation, "cannot copy an expired or inactive license")
		}
		// The copy is dated today and inherits the original's expiry, which
		// must stay strictly after the issue date.
		if !original.ExpiresAt.After(today) {
			return dErrors.New(dErrors.CodeInvalidOperation,
				"cannot copy a license on its expiry day: it expires "+original.ExpiresAt.Format("2006-01-02"))
		}

		operator, err := s.operators.FindByEmail(ctx, req.OperatorEmail)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "issuing operator not found: "+req.OperatorEmail)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
		}

		originalID := original.ID
		copyRec = &models.License{
			ID:            uuid.New(),
			HolderID:      original.HolderID,
			Class:         original.Class,
			ValidityYears: original.ValidityYears,
			IssuedAt:      today,
			ExpiresAt:     original.ExpiresAt,
			Cost:          s.copyFee,
			CopyNumber:    original.CopyNumber + 1,
			CopyReason:    req.Reason,
			OriginalID:    &originalID,
			OperatorID:    operator.ID,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.licenses.Create(ctx, copyRec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist license copy")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.Event{
		Action:    audit.ActionCopyIssued,
		Operator:  req.OperatorEmail,
		HolderID:  copyRec.HolderID.String(),
		LicenseID: copyRec.ID.String(),
		Detail:    fmt.Sprintf("copy #%d of %s: %s", copyRec.CopyNumber, req.LicenseID, req.Reason),
	})
	if s.metrics != nil {
		s.metrics.IncrementCopies()
	}
	s.logger.InfoContext(ctx, "license copy issued",
		"license_id", copyRec.ID,
		"original_id", req.LicenseID,
		"copy_number", copyRec.CopyNumber,
	)
	return copyRec, nil
}

// CountIssued returns how many licenses the registry has ever issued.
func (s *Service) CountIssued(ctx context.Context) (int64, error) {
	return s.licenses.CountAll(ctx)
}

// ListExpired returns every license whose expiry date is before today.
func (s *Service) ListExpired(ctx context.Context) ([]*models.License, error) {
	return s.licenses.FindByExpiryBefore(ctx, models.DateOf(requestcontext.Now(ctx)))
}

// CountExpired counts licenses whose expiry date is before today.
func (s *Service) CountExpired(ctx context.Context) (int64, error) {
	return s.licenses.CountByExpiryBefore(ctx, models.DateOf(requestcontext.Now(ctx)))
}

// FindByDocument returns the holder identified by (type, number) together
// with all their licenses. Holders without any license report not found.
func (s *Service) FindByDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) (*holdermodels.Holder, []*models.License, error) {
	licenses, err := s.licenses.FindByHolderDocument(ctx, docType, docNumber)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query licenses by document")
	}
	if len(licenses) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("no holder with at least one license for %s %s", docType, docNumber))
	}
	holder, err := s.holders.FindByID(ctx, licenses[0].HolderID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
	}
	return holder, licenses, nil
}

// SweepExpired deactivates every active license whose expiry date has passed.
// Idempotent: rows already inactive are untouched, so re-running is a no-op.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	today := models.DateOf(requestcontext.Now(ctx))

	var swept int64
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.licenses.BulkDeactivateExpired(ctx, today)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate expired licenses")
		}
		swept = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		s.logAudit(ctx, audit.Event{
			Action: audit.ActionLicensesSwept,
			Detail: fmt.Sprintf("%d licenses deactivated as of %s", swept, today.Format("2006-01-02")),
		})
	}
	if s.metrics != nil {
		s.metrics.AddSwept(swept)
	}
	return swept, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
