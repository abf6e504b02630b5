package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited administrative action.
type AuditAction string

const (
	AuditActionPause   AuditAction = "PAUSE"
	AuditActionUnpause AuditAction = "UNPAUSE"
	AuditActionSetCap  AuditAction = "SET_CAP"
)

// AuditOutcome records whether the caller was allowed to act.
type AuditOutcome string

const (
	AuditOutcomeAllowed AuditOutcome = "ALLOWED"
	AuditOutcomeDenied  AuditOutcome = "DENIED"
)

// AuditLog records a single administrative call attempt.
type AuditLog struct {
	ID        uuid.UUID    `json:"id"`
	Caller    AccountID    `json:"caller"`
	Action    AuditAction  `json:"action"`
	Outcome   AuditOutcome `json:"outcome"`
	Details   string       `json:"details,omitempty"` // JSON string
	IPAddress string       `json:"ip_address,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
