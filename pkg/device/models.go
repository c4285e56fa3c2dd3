package device

import (
	"time"

	"github.com/google/uuid"
)

// Status is the trust state assigned to a fingerprint-account pair
type Status string

const (
	StatusPending    Status = "pending"    // Awaiting admin approval
	StatusTrusted    Status = "trusted"    // Approved and trusted
	StatusBlocked    Status = "blocked"    // Explicitly blocked
	StatusSuspicious Status = "suspicious" // Flagged for review
)

// Device type classification derived from the user agent
const (
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeOther   = "other"
)

// TrustedDevice tracks one fingerprint's trust relationship to exactly one
// account. Devices are never deleted; revocation is a status transition so
// the audit history survives.
type TrustedDevice struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Fingerprint string    `json:"fingerprint"`

	// Descriptive attributes parsed from the user agent. Informational only,
	// never used in trust decisions.
	DeviceName string `json:"device_name"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`

	// Last known IP, for reference, not for blocking
	LastIPAddress string `json:"last_ip_address"`

	Status    Status    `json:"status"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Approval tracking, nil until an approval action occurs
	ApprovedBy *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`

	// Automatic trust expiry (optional)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired checks if device trust has expired
func (d *TrustedDevice) IsExpired() bool {
	if d.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*d.ExpiresAt)
}

// IsActive checks if the device is actively trusted
func (d *TrustedDevice) IsActive() bool {
	return d.Status == StatusTrusted && !d.IsExpired()
}

// CalculateExpiryDate returns a time.Time that is days in the future from now
func CalculateExpiryDate(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, days)
}

// newPendingDevice builds the record persisted the first time a fingerprint
// is seen for an account. Both repository implementations go through this so
// the descriptive attributes stay consistent.
func newPendingDevice(params CreatePendingParams) TrustedDevice {
	now := time.Now().UTC()
	return TrustedDevice{
		ID:            uuid.New(),
		AccountID:     params.AccountID,
		Fingerprint:   params.Fingerprint,
		DeviceName:    determineDeviceName(params.UserAgent),
		Browser:       determineBrowser(params.UserAgent),
		OS:            determineOS(params.UserAgent),
		DeviceType:    determineDeviceType(params.UserAgent),
		LastIPAddress: params.SourceIP,
		Status:        StatusPending,
		FirstSeen:     now,
		LastSeen:      now,
	}
}
