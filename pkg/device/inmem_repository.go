package device

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// InMemDeviceRepository implements DeviceRepository using an in-memory map.
// The fingerprint uniqueness invariant is enforced under the repository
// mutex, mirroring the unique index the PostgreSQL implementation relies on.
type InMemDeviceRepository struct {
	devices map[string]TrustedDevice // Key: fingerprint
	byID    map[uuid.UUID]string
	mu      sync.Mutex
	options DeviceRepositoryOptions
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return NewInMemDeviceRepositoryWithOptions(DefaultDeviceRepositoryOptions())
}

// NewInMemDeviceRepositoryWithOptions creates a new in-memory device repository with custom options
func NewInMemDeviceRepositoryWithOptions(options DeviceRepositoryOptions) *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[string]TrustedDevice),
		byID:    make(map[uuid.UUID]string),
		options: options,
	}
}

// FindByFingerprint retrieves a device by its fingerprint
func (r *InMemDeviceRepository) FindByFingerprint(ctx context.Context, fingerprint string) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[fingerprint]
	if !exists {
		slog.Debug("Device not found", "fingerprint", fingerprint)
		return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
	}
	return dev, nil
}

// FindByID retrieves a device by its id
func (r *InMemDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fingerprint, exists := r.byID[id]
	if !exists {
		slog.Debug("Device not found", "deviceID", id)
		return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
	}
	return r.devices[fingerprint], nil
}

// CreatePending creates a new device in PENDING status
func (r *InMemDeviceRepository) CreatePending(ctx context.Context, params CreatePendingParams) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[params.Fingerprint]; exists {
		slog.Debug("Device already exists", "fingerprint", params.Fingerprint)
		return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeFingerprintExists, "device fingerprint already registered")
	}

	dev := newPendingDevice(params)
	r.devices[dev.Fingerprint] = dev
	r.byID[dev.ID] = dev.Fingerprint
	slog.Debug("Pending device created", "fingerprint", dev.Fingerprint, "accountID", dev.AccountID)
	return dev, nil
}

// Save persists mutations to an existing device
func (r *InMemDeviceRepository) Save(ctx context.Context, dev TrustedDevice) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[dev.Fingerprint]; !exists {
		slog.Debug("Device not found when saving", "fingerprint", dev.Fingerprint)
		return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
	}

	r.devices[dev.Fingerprint] = dev
	slog.Debug("Device saved", "fingerprint", dev.Fingerprint, "status", dev.Status)
	return dev, nil
}

// ListPending returns devices awaiting approval ordered by first seen, newest first
func (r *InMemDeviceRepository) ListPending(ctx context.Context, params ListPendingParams) ([]TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]TrustedDevice, 0)
	for _, dev := range r.devices {
		if dev.Status != StatusPending {
			continue
		}
		if params.FacilityID != nil && r.options.ScopeResolver != nil {
			facilityID, ok := r.options.ScopeResolver(dev.AccountID)
			if !ok || facilityID != *params.FacilityID {
				continue
			}
		}
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].FirstSeen.After(devices[j].FirstSeen)
	})

	slog.Debug("Found pending devices", "count", len(devices))
	return devices, nil
}

// ListForAccount returns all devices for an account ordered by last seen, newest first
func (r *InMemDeviceRepository) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]TrustedDevice, 0)
	for _, dev := range r.devices {
		if dev.AccountID == accountID {
			devices = append(devices, dev)
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})

	slog.Debug("Found devices for account", "accountID", accountID, "count", len(devices))
	return devices, nil
}

// touch is a test hook to age a device's timestamps in place
func (r *InMemDeviceRepository) touch(fingerprint string, firstSeen, lastSeen time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dev, ok := r.devices[fingerprint]; ok {
		dev.FirstSeen = firstSeen
		dev.LastSeen = lastSeen
		r.devices[fingerprint] = dev
	}
}
