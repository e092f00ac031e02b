package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action labels the lifecycle operation an event records.
type Action string

const (
	ActionLicenseIssued  Action = "license.issued"
	ActionLicenseRenewed Action = "license.renewed"
	ActionCopyIssued     Action = "license.copy_issued"
	ActionLicensesSwept  Action = "license.expired_swept"
	ActionHolderCreated  Action = "holder.created"
	ActionHolderUpdated  Action = "holder.updated"
	ActionOperatorLogin  Action = "operator.login"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    Action
	Operator  string
	HolderID  string
	LicenseID string
	Detail    string
}
