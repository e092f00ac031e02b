package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	holdermodels "vialidad/internal/holder/models"
	holderstore "vialidad/internal/holder/store"
	"vialidad/internal/license/models"
	"vialidad/pkg/platform/sentinel"
)

var day = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

type LicenseStoreSuite struct {
	suite.Suite
	holders *holderstore.InMemory
	store   *InMemory
	ctx     context.Context
}

func (s *LicenseStoreSuite) SetupTest() {
	s.holders = holderstore.NewInMemory()
	s.store = NewInMemory(s.holders)
	s.ctx = context.Background()
}

func TestLicenseStoreSuite(t *testing.T) {
	suite.Run(t, new(LicenseStoreSuite))
}

func (s *LicenseStoreSuite) newLicense(holderID uuid.UUID, class models.Class, expiresAt time.Time) *models.License {
	return &models.License{
		ID:            uuid.New(),
		HolderID:      holderID,
		Class:         class,
		ValidityYears: 5,
		IssuedAt:      day,
		ExpiresAt:     expiresAt,
		Cost:          48.0,
		OperatorID:    uuid.New(),
		Active:        true,
		CreatedAt:     day,
		UpdatedAt:     day,
	}
}

func (s *LicenseStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds a license", func() {
		license := s.newLicense(uuid.New(), models.ClassB, day.AddDate(5, 0, 0))
		s.Require().NoError(s.store.Create(s.ctx, license))

		found, err := s.store.FindByID(s.ctx, license.ID)
		s.Require().NoError(err)
		s.Equal(license.Class, found.Class)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a second active license for the same class", func() {
		holderID := uuid.New()
		s.Require().NoError(s.store.Create(s.ctx, s.newLicense(holderID, models.ClassB, day.AddDate(5, 0, 0))))

		err := s.store.Create(s.ctx, s.newLicense(holderID, models.ClassB, day.AddDate(5, 0, 0)))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("a copy coexists with its active original", func() {
		holderID := uuid.New()
		original := s.newLicense(holderID, models.ClassB, day.AddDate(5, 0, 0))
		s.Require().NoError(s.store.Create(s.ctx, original))

		copyRec := s.newLicense(holderID, models.ClassB, original.ExpiresAt)
		copyRec.CopyNumber = 1
		copyRec.OriginalID = &original.ID
		s.Require().NoError(s.store.Create(s.ctx, copyRec))
	})

	s.Run("an inactive license does not block a new one", func() {
		holderID := uuid.New()
		old := s.newLicense(holderID, models.ClassB, day.AddDate(-1, 0, 0))
		old.Active = false
		s.Require().NoError(s.store.Create(s.ctx, old))

		s.Require().NoError(s.store.Create(s.ctx, s.newLicense(holderID, models.ClassB, day.AddDate(5, 0, 0))))
	})
}

func (s *LicenseStoreSuite) TestUpdate() {
	license := s.newLicense(uuid.New(), models.ClassB, day.AddDate(5, 0, 0))
	s.Require().NoError(s.store.Create(s.ctx, license))

	license.Deactivate(day)
	s.Require().NoError(s.store.Update(s.ctx, license))

	found, err := s.store.FindByID(s.ctx, license.ID)
	s.Require().NoError(err)
	s.False(found.Active)

	s.Run("returns ErrNotFound for unknown license", func() {
		missing := s.newLicense(uuid.New(), models.ClassA, day.AddDate(1, 0, 0))
		s.Require().ErrorIs(s.store.Update(s.ctx, missing), sentinel.ErrNotFound)
	})
}

func (s *LicenseStoreSuite) TestActiveAndHistoryQueries() {
	holderID := uuid.New()
	active := s.newLicense(holderID, models.ClassB, day.AddDate(5, 0, 0))
	s.Require().NoError(s.store.Create(s.ctx, active))

	s.Run("sees the active unexpired license", func() {
		exists, err := s.store.ExistsActiveNonExpired(s.ctx, holderID, models.ClassB, day)
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("ignores other classes and holders", func() {
		exists, err := s.store.ExistsActiveNonExpired(s.ctx, holderID, models.ClassA, day)
		s.Require().NoError(err)
		s.False(exists)

		exists, err = s.store.ExistsActiveNonExpired(s.ctx, uuid.New(), models.ClassB, day)
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("a license expiring today still counts as unexpired", func() {
		exists, err := s.store.ExistsActiveNonExpired(s.ctx, holderID, models.ClassB, active.ExpiresAt)
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.ExistsActiveNonExpired(s.ctx, holderID, models.ClassB, active.ExpiresAt.AddDate(0, 0, 1))
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("history includes inactive records but not copies", func() {
		exists, err := s.store.ExistsByHolderAndClass(s.ctx, holderID, models.ClassB)
		s.Require().NoError(err)
		s.True(exists)

		copyRec := s.newLicense(holderID, models.ClassA, day.AddDate(5, 0, 0))
		copyRec.CopyNumber = 1
		s.Require().NoError(s.store.Create(s.ctx, copyRec))

		exists, err = s.store.ExistsByHolderAndClass(s.ctx, holderID, models.ClassA)
		s.Require().NoError(err)
		s.False(exists)
	})
}

func (s *LicenseStoreSuite) TestExpiryQueries() {
	holderID := uuid.New()
	expired := s.newLicense(holderID, models.ClassB, day.AddDate(0, 0, -1))
	current := s.newLicense(holderID, models.ClassA, day.AddDate(5, 0, 0))
	s.Require().NoError(s.store.Create(s.ctx, expired))
	s.Require().NoError(s.store.Create(s.ctx, current))

	listed, err := s.store.FindByExpiryBefore(s.ctx, day)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(expired.ID, listed[0].ID)

	n, err := s.store.CountByExpiryBefore(s.ctx, day)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	total, err := s.store.CountAll(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, total)
}

func (s *LicenseStoreSuite) TestBulkDeactivateExpired() {
	holderID := uuid.New()
	expired := s.newLicense(holderID, models.ClassB, day.AddDate(0, 0, -1))
	current := s.newLicense(holderID, models.ClassA, day.AddDate(5, 0, 0))
	s.Require().NoError(s.store.Create(s.ctx, expired))
	s.Require().NoError(s.store.Create(s.ctx, current))

	n, err := s.store.BulkDeactivateExpired(s.ctx, day)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	found, err := s.store.FindByID(s.ctx, expired.ID)
	s.Require().NoError(err)
	s.False(found.Active)
	// Deactivation is stamped with the sweep cutoff, not wall-clock time.
	s.True(found.UpdatedAt.Equal(day))

	// Second pass is a no-op.
	n, err = s.store.BulkDeactivateExpired(s.ctx, day)
	s.Require().NoError(err)
	s.EqualValues(0, n)
}

func (s *LicenseStoreSuite) TestActiveHolderIDs() {
	withActive := uuid.New()
	withExpired := uuid.New()
	s.Require().NoError(s.store.Create(s.ctx, s.newLicense(withActive, models.ClassB, day.AddDate(5, 0, 0))))
	s.Require().NoError(s.store.Create(s.ctx, s.newLicense(withActive, models.ClassA, day.AddDate(3, 0, 0))))
	s.Require().NoError(s.store.Create(s.ctx, s.newLicense(withExpired, models.ClassB, day.AddDate(0, 0, -1))))

	ids, err := s.store.ActiveHolderIDs(s.ctx, day)
	s.Require().NoError(err)
	// Deduplicated; the holder with only an expired license is absent.
	s.Require().Len(ids, 1)
	s.Equal(withActive, ids[0])
}

func (s *LicenseStoreSuite) TestFindByHolderDocument() {
	holder := &holdermodels.Holder{
		ID:             uuid.New(),
		FirstName:      "Ana",
		LastName:       "Paredes",
		BirthDate:      time.Date(1995, time.April, 10, 0, 0, 0, 0, time.UTC),
		DocumentType:   holdermodels.DocumentDNI,
		DocumentNumber: "30111222",
		CreatedAt:      day,
		UpdatedAt:      day,
	}
	s.Require().NoError(s.holders.Create(s.ctx, holder))
	s.Require().NoError(s.store.Create(s.ctx, s.newLicense(holder.ID, models.ClassB, day.AddDate(5, 0, 0))))

	s.Run("finds licenses by document", func() {
		licenses, err := s.store.FindByHolderDocument(s.ctx, holdermodels.DocumentDNI, "30111222")
		s.Require().NoError(err)
		s.Len(licenses, 1)
	})

	s.Run("unknown document yields an empty result", func() {
		licenses, err := s.store.FindByHolderDocument(s.ctx, holdermodels.DocumentDNI, "99999999")
		s.Require().NoError(err)
		s.Empty(licenses)
	})
}
