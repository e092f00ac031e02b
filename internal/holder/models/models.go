package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "vialidad/pkg/domain-errors"
)

// DocumentType enumerates the identity documents the registry accepts.
type DocumentType string

const (
	DocumentDNI      DocumentType = "DNI"
	DocumentCedula   DocumentType = "CEDULA_IDENTIDAD"
	DocumentPassport DocumentType = "PASAPORTE"
	DocumentOther    DocumentType = "OTRO"
)

// ParseDocumentType normalizes and validates a document type value.
func ParseDocumentType(value string) (DocumentType, error) {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(value))) {
	case DocumentDNI:
		return DocumentDNI, nil
	case DocumentCedula:
		return DocumentCedula, nil
	case DocumentPassport:
		return DocumentPassport, nil
	case DocumentOther:
		return DocumentOther, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid document type: "+value)
}

// BloodGroup and RhFactor are printed on the physical credential.
type BloodGroup string

const (
	BloodGroupA  BloodGroup = "A"
	BloodGroupB  BloodGroup = "B"
	BloodGroupAB BloodGroup = "AB"
	BloodGroupO  BloodGroup = "O"
)

// ParseBloodGroup normalizes and validates a blood group value.
func ParseBloodGroup(value string) (BloodGroup, error) {
	switch BloodGroup(strings.ToUpper(strings.TrimSpace(value))) {
	case BloodGroupA:
		return BloodGroupA, nil
	case BloodGroupB:
		return BloodGroupB, nil
	case BloodGroupAB:
		return BloodGroupAB, nil
	case BloodGroupO:
		return BloodGroupO, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid blood group: "+value)
}

type RhFactor string

const (
	RhPositive RhFactor = "POSITIVO"
	RhNegative RhFactor = "NEGATIVO"
)

// ParseRhFactor normalizes and validates an Rh factor value.
func ParseRhFactor(value string) (RhFactor, error) {
	switch RhFactor(strings.ToUpper(strings.TrimSpace(value))) {
	case RhPositive:
		return RhPositive, nil
	case RhNegative:
		return RhNegative, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid rh factor: "+value)
}

// Holder is a person registered as a license holder (titular).
//
// Invariants:
//   - (DocumentType, DocumentNumber) is unique across holders
//   - BirthDate is strictly in the past
//   - Age is derived at evaluation time, never stored
type Holder struct {
	ID             uuid.UUID    `json:"id"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	BirthDate      time.Time    `json:"birth_date"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
	BloodGroup     BloodGroup   `json:"blood_group"`
	RhFactor       RhFactor     `json:"rh_factor"`
	Address        string       `json:"address"`
	OrganDonor     bool         `json:"organ_donor"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ParseBirthDate parses a YYYY-MM-DD birth date into a UTC civil date.
func ParseBirthDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "invalid birth date, expected YYYY-MM-DD: "+value)
	}
	return t, nil
}

// Age returns the holder's age in whole years as of the given instant.
func (h *Holder) Age(at time.Time) int {
	years := at.Year() - h.BirthDate.Year()
	// Birthday not reached yet this year.
	if at.Month() < h.BirthDate.Month() ||
		(at.Month() == h.BirthDate.Month() && at.Day() < h.BirthDate.Day()) {
		years--
	}
	return years
}

// NewHolder validates invariants and builds a holder record.
func NewHolder(id uuid.UUID, firstName, lastName string, birthDate time.Time, docType DocumentType, docNumber string, blood BloodGroup, rh RhFactor, address string, organDonor bool, now time.Time) (*Holder, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	docNumber = strings.TrimSpace(docNumber)
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "holder name cannot be empty")
	}
	if docNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document number cannot be empty")
	}
	if !birthDate.Before(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "birth date must be in the past")
	}
	return &Holder{
		ID:             id,
		FirstName:      firstName,
		LastName:       lastName,
		BirthDate:      birthDate,
		DocumentType:   docType,
		DocumentNumber: docNumber,
		BloodGroup:     blood,
		RhFactor:       rh,
		Address:        address,
		OrganDonor:     organDonor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
