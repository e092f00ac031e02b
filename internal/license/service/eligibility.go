package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	holdermodels "vialidad/internal/holder/models"
	"vialidad/internal/license/models"
	dErrors "vialidad/pkg/domain-errors"
)

// Age thresholds for the two eligibility tiers.
const (
	minAgeGeneral      = 17
	minAgeProfessional = 21
	maxAgeProfessional = 65
)

// validityYears is the step function mapping the applicant's age to how many
// years the new license stays valid. Under-21 applicants get 1 year on their
// first license and 3 once they already hold one of the base classes.
func validityYears(age int, holdsBaseClass bool) int {
	switch {
	case age < 21:
		if holdsBaseClass {
			return 3
		}
		return 1
	case age <= 46:
		return 5
	case age <= 60:
		return 4
	case age <= 70:
		return 3
	default:
		return 1
	}
}

// expiryDate anchors the issue date to the holder's birth month and day, then
// advances it by the validity period. Tying expiry to the birthday keeps all
// of a person's renewals on the same anniversary. Validity is at least one
// year, so the result is always strictly after the issue date.
func expiryDate(issuedAt, birthDate time.Time, years int) time.Time {
	anchored := time.Date(issuedAt.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC)
	return anchored.AddDate(years, 0, 0)
}

// validateEligibility applies the tier rules for the requested class.
func (s *Service) validateEligibility(ctx context.Context, holder *holdermodels.Holder, class models.Class, now time.Time) error {
	age := holder.Age(now)

	switch {
	case class.IsProfessional():
		if age < minAgeProfessional {
			return dErrors.New(dErrors.CodeInvalidLicense,
				fmt.Sprintf("minimum age for class %s is %d years", class, minAgeProfessional))
		}
		seasoned, err := s.hasSeasonedClassB(ctx, holder.ID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check class B prerequisite")
		}
		if !seasoned {
			return dErrors.New(dErrors.CodeInvalidLicense,
				fmt.Sprintf("class %s requires an active class B license held for at least one year", class))
		}
		if age > maxAgeProfessional {
			return dErrors.New(dErrors.CodeInvalidLicense,
				fmt.Sprintf("class %s cannot be issued past age %d", class, maxAgeProfessional))
		}
	case class.IsGeneral():
		if age < minAgeGeneral {
			return dErrors.New(dErrors.CodeInvalidLicense,
				fmt.Sprintf("minimum age for class %s is %d years", class, minAgeGeneral))
		}
	default:
		return dErrors.New(dErrors.CodeInvalidLicense, "invalid license class: "+string(class))
	}
	return nil
}

// hasSeasonedClassB reports whether the holder has an active class B license
// issued more than a year ago. The clock runs from the issue date, so a
// renewal resets it.
func (s *Service) hasSeasonedClassB(ctx context.Context, holderID uuid.UUID, now time.Time) (bool, error) {
	licenses, err := s.licenses.FindByHolderAndClass(ctx, holderID, models.ClassB)
	if err != nil {
		return false, err
	}
	cutoff := models.DateOf(now).AddDate(-1, 0, 0)
	for _, l := range licenses {
		if l.Active && l.IssuedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// computeValidity resolves the validity period for the holder as of now,
// consulting the store only for the under-21 repeat-holder rule.
func (s *Service) computeValidity(ctx context.Context, holder *holdermodels.Holder, now time.Time) (int, error) {
	age := holder.Age(now)
	if age >= 21 {
		return validityYears(age, false), nil
	}
	hasA, err := s.licenses.ExistsByHolderAndClass(ctx, holder.ID, models.ClassA)
	if err != nil {
		return 0, err
	}
	hasB := false
	if !hasA {
		hasB, err = s.licenses.ExistsByHolderAndClass(ctx, holder.ID, models.ClassB)
		if err != nil {
			return 0, err
		}
	}
	return validityYears(age, hasA || hasB), nil
}
