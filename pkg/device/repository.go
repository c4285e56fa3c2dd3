package device

import (
	"context"

	"github.com/google/uuid"
)

// CreatePendingParams captures the inputs for registering a never-seen
// fingerprint. Descriptive attributes are derived from the user agent at
// creation time.
type CreatePendingParams struct {
	AccountID   uuid.UUID
	Fingerprint string
	UserAgent   string
	SourceIP    string
}

// ListPendingParams filters the pending-device listing. A nil FacilityID
// returns pending devices across all facilities.
type ListPendingParams struct {
	FacilityID *uuid.UUID
}

// DeviceRepository defines the interface for device trust storage operations.
// Devices are never deleted; all mutations go through Save.
type DeviceRepository interface {
	// FindByFingerprint returns the device for an exact fingerprint match.
	// Returns an error with code DEVICE_NOT_FOUND when no record exists.
	FindByFingerprint(ctx context.Context, fingerprint string) (TrustedDevice, error)

	// FindByID returns the device with the given id.
	// Returns an error with code DEVICE_NOT_FOUND when no record exists.
	FindByID(ctx context.Context, id uuid.UUID) (TrustedDevice, error)

	// CreatePending persists a new device in PENDING status. The fingerprint
	// carries a uniqueness constraint; a duplicate registration surfaces an
	// error with code FINGERPRINT_EXISTS so the caller can re-resolve via a
	// fresh FindByFingerprint.
	CreatePending(ctx context.Context, params CreatePendingParams) (TrustedDevice, error)

	// Save persists mutations to an existing device. Last writer wins on
	// concurrent updates; callers must not assume prior in-memory values
	// remain valid afterwards.
	Save(ctx context.Context, dev TrustedDevice) (TrustedDevice, error)

	// ListPending returns devices awaiting approval, most recently first
	// seen first, optionally restricted to accounts of one facility.
	ListPending(ctx context.Context, params ListPendingParams) ([]TrustedDevice, error)

	// ListForAccount returns all devices of an account, most recently seen
	// first.
	ListForAccount(ctx context.Context, accountID uuid.UUID) ([]TrustedDevice, error)
}

// ScopeResolver maps an account to its facility for the pending-device scope
// filter. The in-memory repository needs it because account records live
// outside this package; the PostgreSQL repository joins the account table
// instead.
type ScopeResolver func(accountID uuid.UUID) (uuid.UUID, bool)

// DeviceRepositoryOptions configures repository behavior
type DeviceRepositoryOptions struct {
	// ScopeResolver is only consulted by the in-memory repository when a
	// facility filter is requested. Nil disables scope filtering there.
	ScopeResolver ScopeResolver
}

// DefaultDeviceRepositoryOptions returns the default repository options
func DefaultDeviceRepositoryOptions() DeviceRepositoryOptions {
	return DeviceRepositoryOptions{}
}
