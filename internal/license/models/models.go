package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "vialidad/pkg/domain-errors"
)

// Class is the category of a driver's license.
type Class string

const (
	ClassA Class = "A"
	ClassB Class = "B"
	ClassC Class = "C"
	ClassD Class = "D"
	ClassE Class = "E"
	ClassF Class = "F"
	ClassG Class = "G"
)

// ParseClass normalizes and validates a license class value.
func ParseClass(value string) (Class, error) {
	c := Class(strings.ToUpper(strings.TrimSpace(value)))
	switch c {
	case ClassA, ClassB, ClassC, ClassD, ClassE, ClassF, ClassG:
		return c, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidLicense, "invalid license class: "+value)
}

// IsProfessional reports whether the class belongs to the professional tier
// (commercial transport), which carries stricter eligibility rules.
func (c Class) IsProfessional() bool {
	return c == ClassC || c == ClassD || c == ClassE
}

// IsGeneral reports whether the class belongs to the general tier.
func (c Class) IsGeneral() bool {
	switch c {
	case ClassA, ClassB, ClassF, ClassG:
		return true
	}
	return false
}

// RenewalReason is why an existing license is being renewed.
type RenewalReason string

const (
	RenewalExpired    RenewalReason = "EXPIRED"
	RenewalDataChange RenewalReason = "DATA_CHANGE"
)

// License is one issued credential record.
//
// Invariants:
//   - ExpiresAt is always strictly after IssuedAt; it is computed, never supplied
//   - Cost is frozen at issue time; tariff changes never rewrite past records
//   - For a given (holder, class) at most one non-copy license is active and
//     unexpired at any instant
//   - A record only ever mutates by flipping Active to false; it is never
//     resurrected or deleted
type License struct {
	ID            uuid.UUID     `json:"id"`
	HolderID      uuid.UUID     `json:"holder_id"`
	Class         Class         `json:"class"`
	ValidityYears int           `json:"validity_years"`
	IssuedAt      time.Time     `json:"issued_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Cost          float64       `json:"cost"`
	CopyNumber    int           `json:"copy_number,omitempty"`
	CopyReason    string        `json:"copy_reason,omitempty"`
	OriginalID    *uuid.UUID    `json:"original_id,omitempty"`
	OperatorID    uuid.UUID     `json:"operator_id"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsCopy reports whether the record represents a reissued physical copy
// rather than a new grant.
func (l *License) IsCopy() bool {
	return l.CopyNumber > 0
}

// IsExpired reports whether the license's expiry date has passed as of now.
// A license expiring today is not yet expired, matching the registry's
// day-granularity rules.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt.Before(DateOf(now))
}

// Deactivate flips the active flag off. Deactivation is terminal.
func (l *License) Deactivate(now time.Time) {
	l.Active = false
	l.UpdatedAt = now
}

// DateOf truncates an instant to its civil date at UTC midnight. All issue
// and expiry arithmetic works on dates, not instants.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
