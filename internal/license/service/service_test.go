package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vialidad/internal/audit"
	holdermodels "vialidad/internal/holder/models"
	holderstore "vialidad/internal/holder/store"
	"vialidad/internal/license/models"
	licensestore "vialidad/internal/license/store"
	opmodels "vialidad/internal/operator/models"
	operatorstore "vialidad/internal/operator/store"
	"vialidad/internal/tariff"
	tariffstore "vialidad/internal/tariff/store"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/tx"
	"vialidad/pkg/requestcontext"
)

const operatorEmail = "operador@municipio.gob"

// The fixed clock for every test: June 1st, 2025.
var today = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

type LicenseServiceSuite struct {
	suite.Suite
	holders    *holderstore.InMemory
	licenses   *licensestore.InMemory
	operators  *operatorstore.InMemory
	auditStore *audit.InMemoryStore
	service    *Service
	ctx        context.Context
	operator   *opmodels.Operator
}

func (s *LicenseServiceSuite) SetupTest() {
	s.holders = holderstore.NewInMemory()
	s.licenses = licensestore.NewInMemory(s.holders)
	s.operators = operatorstore.NewInMemory()
	s.auditStore = audit.NewInMemoryStore()

	table := tariff.NewTable(tariffstore.Seed())
	s.service = New(
		s.licenses, s.holders, s.operators, tx.NewMutexRunner(),
		tariff.NewCalculator(table, 8.0), 50.0,
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)

	s.operator = &opmodels.Operator{
		ID:     uuid.New(),
		Email:  operatorEmail,
		Roles:  []opmodels.Role{opmodels.RoleOperator},
		Active: true,
	}
	s.Require().NoError(s.operators.Create(context.Background(), s.operator))

	s.ctx = requestcontext.WithTime(context.Background(), today)
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceSuite))
}

// at returns a context whose clock is pinned to the given instant.
func (s *LicenseServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *LicenseServiceSuite) newHolder(birthDate time.Time) *holdermodels.Holder {
	holder := &holdermodels.Holder{
		ID:             uuid.New(),
		FirstName:      "Ana",
		LastName:       "Paredes",
		BirthDate:      birthDate,
		DocumentType:   holdermodels.DocumentDNI,
		DocumentNumber: uuid.NewString()[:8],
		BloodGroup:     holdermodels.BloodGroupO,
		RhFactor:       holdermodels.RhPositive,
		Address:        "Av. Mitre 450",
		CreatedAt:      today,
		UpdatedAt:      today,
	}
	s.Require().NoError(s.holders.Create(context.Background(), holder))
	return holder
}

func (s *LicenseServiceSuite) issue(ctx context.Context, holderID uuid.UUID, class models.Class) (*models.License, error) {
	return s.service.Issue(ctx, IssueRequest{
		HolderID:      holderID,
		Class:         class,
		OperatorEmail: operatorEmail,
	})
}

func (s *LicenseServiceSuite) TestIssue() {
	s.Run("grants a class B license to an adult", func() {
		holder := s.newHolder(date(1995, time.April, 10)) // age 30

		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		s.Equal(5, license.ValidityYears)
		s.Equal(models.DateOf(today), license.IssuedAt)
		// Expiry lands on the birthday five years out.
		s.Equal(date(2030, time.April, 10), license.ExpiresAt)
		// Base fee 40 plus the 8.0 administrative surcharge.
		s.InDelta(48.0, license.Cost, 0.001)
		s.True(license.Active)
		s.False(license.IsCopy())
		s.Equal(s.operator.ID, license.OperatorID)
	})

	s.Run("records an audit event", func() {
		holder := s.newHolder(date(1990, time.March, 3))

		license, err := s.issue(s.ctx, holder.ID, models.ClassA)
		s.Require().NoError(err)

		events, err := s.auditStore.ListRecent(context.Background(), 10)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(audit.ActionLicenseIssued, events[0].Action)
		s.Equal(license.ID.String(), events[0].LicenseID)
		s.Equal(operatorEmail, events[0].Operator)
	})

	s.Run("rejects a second active license for the same class", func() {
		holder := s.newHolder(date(1995, time.April, 10))

		_, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allows different classes for the same holder", func() {
		holder := s.newHolder(date(1995, time.April, 10))

		_, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)
		_, err = s.issue(s.ctx, holder.ID, models.ClassA)
		s.Require().NoError(err)
	})

	s.Run("rejects unknown holder", func() {
		_, err := s.issue(s.ctx, uuid.New(), models.ClassB)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects missing tariff entry", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		empty := New(
			s.licenses, s.holders, s.operators, tx.NewMutexRunner(),
			tariff.NewCalculator(tariff.NewTable(nil), 8.0), 50.0,
		)

		_, err := empty.Issue(s.ctx, IssueRequest{
			HolderID:      holder.ID,
			Class:         models.ClassB,
			OperatorEmail: operatorEmail,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTariffNotFound))
	})
}

func (s *LicenseServiceSuite) TestEligibility() {
	s.Run("rejects general class under 17", func() {
		holder := s.newHolder(date(2009, time.July, 1)) // turns 16 next month

		_, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	s.Run("accepts general class at exactly 17", func() {
		holder := s.newHolder(date(2008, time.June, 1)) // 17th birthday today

		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)
		s.Equal(1, license.ValidityYears)
	})

	s.Run("rejects professional class under 21", func() {
		holder := s.newHolder(date(2005, time.July, 1)) // age 19

		_, err := s.issue(s.ctx, holder.ID, models.ClassC)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	s.Run("rejects professional class without a class B history", func() {
		holder := s.newHolder(date(1995, time.April, 10))

		_, err := s.issue(s.ctx, holder.ID, models.ClassC)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	s.Run("rejects professional class when the class B is too fresh", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		// B issued six months ago.
		_, err := s.issue(s.at(today.AddDate(0, -6, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.issue(s.ctx, holder.ID, models.ClassC)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	s.Run("grants professional class with a seasoned class B", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		_, err := s.issue(s.at(today.AddDate(-2, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		license, err := s.issue(s.ctx, holder.ID, models.ClassC)
		s.Require().NoError(err)
		s.Equal(5, license.ValidityYears)
		// Professional base fee 47 plus the surcharge.
		s.InDelta(55.0, license.Cost, 0.001)
	})

	s.Run("rejects professional class past 65", func() {
		holder := s.newHolder(date(1958, time.January, 15)) // age 67
		_, err := s.issue(s.at(today.AddDate(-2, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.issue(s.ctx, holder.ID, models.ClassC)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	s.Run("under 21 with a prior base class gets three years", func() {
		holder := s.newHolder(date(2006, time.January, 1)) // age 19
		_, err := s.issue(s.at(today.AddDate(-1, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		license, err := s.issue(s.ctx, holder.ID, models.ClassA)
		s.Require().NoError(err)
		s.Equal(3, license.ValidityYears)
	})
}

func (s *LicenseServiceSuite) TestRenew() {
	s.Run("rejects expiry renewal of a still-valid license", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.service.Renew(s.ctx, RenewRequest{
			LicenseID: license.ID,
			Reason:    models.RenewalExpired,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})

	s.Run("renews an expired license", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		old, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)
		s.Require().True(old.IsExpired(today))

		renewed, err := s.service.Renew(s.ctx, RenewRequest{
			LicenseID: old.ID,
			Reason:    models.RenewalExpired,
		})
		s.Require().NoError(err)

		s.NotEqual(old.ID, renewed.ID)
		s.Equal(old.Class, renewed.Class)
		s.Equal(models.DateOf(today), renewed.IssuedAt)
		s.True(renewed.Active)
		// The operator who issued the original is carried forward.
		s.Equal(old.OperatorID, renewed.OperatorID)

		stored, err := s.licenses.FindByID(context.Background(), old.ID)
		s.Require().NoError(err)
		s.False(stored.Active)
	})

	s.Run("recomputes validity from the holder's current age", func() {
		holder := s.newHolder(date(1962, time.February, 1)) // age 63 today
		old, err := s.issue(s.at(today.AddDate(-5, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)
		s.Equal(4, old.ValidityYears) // was 58 at issue

		renewed, err := s.service.Renew(s.ctx, RenewRequest{
			LicenseID: old.ID,
			Reason:    models.RenewalExpired,
		})
		s.Require().NoError(err)
		s.Equal(4, renewed.ValidityYears)
		// Base fee 30 for four years, plus the surcharge.
		s.InDelta(38.0, renewed.Cost, 0.001)
	})

	s.Run("data change renewal requires updated fields", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.service.Renew(s.ctx, RenewRequest{
			LicenseID: license.ID,
			Reason:    models.RenewalDataChange,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})

	s.Run("data change renewal updates the holder", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		newAddress := "Calle San Martin 120"
		renewed, err := s.service.Renew(s.ctx, RenewRequest{
			LicenseID:  license.ID,
			Reason:     models.RenewalDataChange,
			NewAddress: &newAddress,
		})
		s.Require().NoError(err)
		s.True(renewed.Active)

		updated, err := s.holders.FindByID(context.Background(), holder.ID)
		s.Require().NoError(err)
		s.Equal(newAddress, updated.Address)
	})

	s.Run("data change renewal of an expired license is rejected", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		old, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		name := "Maria"
		_, err = s.service.Renew(s.ctx, RenewRequest{
			LicenseID:    old.ID,
			Reason:       models.RenewalDataChange,
			NewFirstName: &name,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})

	s.Run("carries copy metadata onto the successor", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		original, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		// A copy taken while the original was still valid, now expired.
		copyRec, err := s.service.IssueCopy(s.at(today.AddDate(-2, 0, 0)), CopyRequest{
			LicenseID: original.ID, Reason: "theft", OperatorEmail: operatorEmail,
		})
		s.Require().NoError(err)
		s.Require().True(copyRec.IsExpired(today))

		copyNumber := copyRec.CopyNumber
		renewed, err := s.service.Renew(s.ctx, RenewRequest{
			LicenseID:  copyRec.ID,
			Reason:     models.RenewalExpired,
			CopyNumber: &copyNumber,
			CopyReason: copyRec.CopyReason,
			OriginalID: &original.ID,
		})
		s.Require().NoError(err)

		s.Equal(copyNumber, renewed.CopyNumber)
		s.Equal(copyRec.CopyReason, renewed.CopyReason)
		s.Require().NotNil(renewed.OriginalID)
		s.Equal(original.ID, *renewed.OriginalID)
	})

	s.Run("rejects a back-reference to an unknown original", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		old, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		unknown := uuid.New()
		_, err = s.service.Renew(s.ctx, RenewRequest{
			LicenseID:  old.ID,
			Reason:     models.RenewalExpired,
			OriginalID: &unknown,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects an unknown renewal reason", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		license, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.service.Renew(s.ctx, RenewRequest{
			LicenseID: license.ID,
			Reason:    models.RenewalReason("LOST"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})
}

func (s *LicenseServiceSuite) TestIssueCopy() {
	s.Run("issues a copy of an active license", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		original, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		copyRec, err := s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID:     original.ID,
			Reason:        "theft",
			OperatorEmail: operatorEmail,
		})
		s.Require().NoError(err)

		s.Equal(1, copyRec.CopyNumber)
		s.Equal("theft", copyRec.CopyReason)
		s.Equal(original.ID, *copyRec.OriginalID)
		// Copies keep the original's expiry and charge the flat fee.
		s.Equal(original.ExpiresAt, copyRec.ExpiresAt)
		s.Equal(original.ValidityYears, copyRec.ValidityYears)
		s.InDelta(50.0, copyRec.Cost, 0.001)

		// The original is untouched.
		stored, err := s.licenses.FindByID(context.Background(), original.ID)
		s.Require().NoError(err)
		s.True(stored.Active)
	})

	s.Run("a copy of a copy increments the sequence", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		original, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		first, err := s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID: original.ID, Reason: "theft", OperatorEmail: operatorEmail,
		})
		s.Require().NoError(err)
		second, err := s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID: first.ID, Reason: "loss", OperatorEmail: operatorEmail,
		})
		s.Require().NoError(err)
		s.Equal(2, second.CopyNumber)
	})

	s.Run("rejects a copy on the original's expiry day", func() {
		holder := s.newHolder(date(2004, time.June, 1)) // no birthday offset
		original, err := s.issue(s.at(today.AddDate(-1, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)
		// Expires today: still usable, but a copy would expire the day it
		// is issued.
		s.Require().Equal(models.DateOf(today), original.ExpiresAt)
		s.Require().False(original.IsExpired(today))

		_, err = s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID: original.ID, Reason: "theft", OperatorEmail: operatorEmail,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})

	s.Run("a copy expires strictly after its issue date", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		original, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		copyRec, err := s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID: original.ID, Reason: "loss", OperatorEmail: operatorEmail,
		})
		s.Require().NoError(err)
		s.True(copyRec.ExpiresAt.After(copyRec.IssuedAt))
	})

	s.Run("rejects a copy of an expired license", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		old, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)

		_, err = s.service.IssueCopy(s.ctx, CopyRequest{
			LicenseID: old.ID, Reason: "theft", OperatorEmail: operatorEmail,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOperation))
	})
}

func (s *LicenseServiceSuite) TestListExpired() {
	holder := s.newHolder(date(1995, time.April, 10))
	expired, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
	s.Require().NoError(err)
	_, err = s.issue(s.ctx, holder.ID, models.ClassA)
	s.Require().NoError(err)

	listed, err := s.service.ListExpired(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(expired.ID, listed[0].ID)

	n, err := s.service.CountExpired(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *LicenseServiceSuite) TestExpiringTodayIsNotExpired() {
	holder := s.newHolder(date(2004, time.June, 1)) // 21st birthday today
	// Issued exactly one year ago at age 20 with no history: one year of
	// validity, expiring on the birthday, which is today.
	license, err := s.issue(s.at(today.AddDate(-1, 0, 0)), holder.ID, models.ClassB)
	s.Require().NoError(err)
	s.Equal(models.DateOf(today), license.ExpiresAt)

	n, err := s.service.CountExpired(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(0, n)
}

func (s *LicenseServiceSuite) TestCountIssued() {
	holder := s.newHolder(date(1995, time.April, 10))
	_, err := s.issue(s.ctx, holder.ID, models.ClassB)
	s.Require().NoError(err)
	_, err = s.issue(s.ctx, holder.ID, models.ClassA)
	s.Require().NoError(err)

	n, err := s.service.CountIssued(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, n)
}

func (s *LicenseServiceSuite) TestFindByDocument() {
	s.Run("returns the holder and every license", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		_, err := s.issue(s.ctx, holder.ID, models.ClassB)
		s.Require().NoError(err)

		found, licenses, err := s.service.FindByDocument(s.ctx, holder.DocumentType, holder.DocumentNumber)
		s.Require().NoError(err)
		s.Equal(holder.ID, found.ID)
		s.Len(licenses, 1)
	})

	s.Run("holder without licenses reports not found", func() {
		holder := s.newHolder(date(1995, time.April, 10))

		_, _, err := s.service.FindByDocument(s.ctx, holder.DocumentType, holder.DocumentNumber)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LicenseServiceSuite) TestSweepExpired() {
	s.Run("deactivates expired licenses exactly once", func() {
		holder := s.newHolder(date(1995, time.April, 10))
		expired, err := s.issue(s.at(today.AddDate(-6, 0, 0)), holder.ID, models.ClassB)
		s.Require().NoError(err)
		current, err := s.issue(s.ctx, holder.ID, models.ClassA)
		s.Require().NoError(err)

		swept, err := s.service.SweepExpired(s.ctx)
		s.Require().NoError(err)
		s.EqualValues(1, swept)

		stored, err := s.licenses.FindByID(context.Background(), expired.ID)
		s.Require().NoError(err)
		s.False(stored.Active)

		kept, err := s.licenses.FindByID(context.Background(), current.ID)
		s.Require().NoError(err)
		s.True(kept.Active)

		// Idempotent: the second pass finds nothing to do.
		swept, err = s.service.SweepExpired(s.ctx)
		s.Require().NoError(err)
		s.EqualValues(0, swept)
	})
}
