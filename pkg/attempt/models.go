package attempt

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is an immutable record of one authentication attempt. Rows
// are only ever appended; the ledger keeps them as a durable evidence trail
// for brute force and credential stuffing detection.
type LoginAttempt struct {
	ID uuid.UUID `json:"id"`

	// AccountID is nil for attempts against unknown usernames; the username
	// string is still recorded.
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	Username  string     `json:"username"`

	IPAddress   string `json:"ip_address"`
	Fingerprint string `json:"fingerprint,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`

	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Location annotation supplied by an external collaborator; the ledger
	// stores it opaquely and never computes it.
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`

	// AttemptedAt is set at insertion and is authoritative for sliding
	// window calculations.
	AttemptedAt time.Time `json:"attempted_at"`
}

// IdentifierKind selects how CountFailuresSince matches attempts
type IdentifierKind string

const (
	IdentifierIP       IdentifierKind = "ip"
	IdentifierUsername IdentifierKind = "username"
)

// RecordParams captures the inputs for appending one attempt to the ledger
type RecordParams struct {
	Username      string
	IPAddress     string
	Success       bool
	AccountID     *uuid.UUID
	Fingerprint   string
	UserAgent     string
	FailureReason string
}
