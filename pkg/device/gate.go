package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// DenyReason is the machine-readable reason attached to a Deny decision
type DenyReason string

const (
	DenyNewDevice        DenyReason = "new_device_detected"
	DenyDevicePending    DenyReason = "device_pending"
	DenyDeviceBlocked    DenyReason = "device_blocked"
	DenyDeviceSuspicious DenyReason = "device_suspicious"
	DenyDeviceExpired    DenyReason = "device_expired"
)

// Message returns the user-facing explanation for a deny reason
func (r DenyReason) Message() string {
	switch r {
	case DenyNewDevice:
		return "New device detected. An administrator must approve this device before you can continue."
	case DenyDevicePending:
		return "Device approval is pending. An administrator will review your request soon."
	case DenyDeviceBlocked:
		return "This device has been blocked. Please contact your administrator."
	case DenyDeviceSuspicious:
		return "This device is under security review. Please contact your administrator."
	case DenyDeviceExpired:
		return "Device trust has expired. Re-approval is required. Please contact your administrator."
	}
	return "Device is not trusted."
}

// Decision is the outcome of a trust gate evaluation. A Deny is expected
// control flow, not an error; only genuine faults propagate as errors.
type Decision struct {
	Allowed          bool
	Reason           DenyReason
	DeviceID         *uuid.UUID
	RequiresApproval bool
}

// Allow returns the decision that lets the login proceed
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denial with the given reason
func Deny(reason DenyReason, deviceID *uuid.UUID, requiresApproval bool) Decision {
	return Decision{
		Reason:           reason,
		DeviceID:         deviceID,
		RequiresApproval: requiresApproval,
	}
}

// TrustGate decides whether a just-authenticated principal may proceed from
// the device it presents. It is stateless between invocations; all durable
// state lives in the repository.
type TrustGate struct {
	deviceRepository DeviceRepository
}

// NewTrustGate creates a trust gate backed by the given repository
func NewTrustGate(deviceRepository DeviceRepository) *TrustGate {
	return &TrustGate{deviceRepository: deviceRepository}
}

// Evaluate runs the trust state machine for an account and the signals its
// request presented. It performs at most one read and one write:
//
//	no record            -> create PENDING, deny new_device_detected
//	PENDING              -> deny device_pending (no write)
//	BLOCKED              -> deny device_blocked (no write)
//	SUSPICIOUS           -> deny device_suspicious (no write)
//	TRUSTED, expired     -> re-PEND, deny device_expired
//	TRUSTED              -> update last seen and IP, allow
//
// Two racing first-sight calls can both observe no record; the storage
// uniqueness constraint picks the winner and the loser re-reads once and
// decides from the record it finds.
func (g *TrustGate) Evaluate(ctx context.Context, accountID uuid.UUID, sig Signals, sourceIP string) (Decision, error) {
	fingerprint := Fingerprint(sig)

	dev, err := g.deviceRepository.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		if !securityerrors.IsCode(err, securityerrors.ErrCodeDeviceNotFound) {
			return Decision{}, err
		}

		created, createErr := g.deviceRepository.CreatePending(ctx, CreatePendingParams{
			AccountID:   accountID,
			Fingerprint: fingerprint,
			UserAgent:   sig.UserAgent,
			SourceIP:    sourceIP,
		})
		if createErr == nil {
			slog.Info("New device detected, awaiting approval",
				"deviceID", created.ID, "accountID", accountID)
			return Deny(DenyNewDevice, &created.ID, true), nil
		}

		if !securityerrors.IsCode(createErr, securityerrors.ErrCodeFingerprintExists) {
			return Decision{}, createErr
		}

		// Lost the first-sight race: someone else just registered this
		// fingerprint. One re-read, then decide from what is there.
		slog.Debug("Lost device creation race, re-reading", "fingerprint", fingerprint)
		dev, err = g.deviceRepository.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return Decision{}, err
		}
	}

	return g.decide(ctx, dev, sourceIP)
}

func (g *TrustGate) decide(ctx context.Context, dev TrustedDevice, sourceIP string) (Decision, error) {
	switch dev.Status {
	case StatusPending:
		return Deny(DenyDevicePending, &dev.ID, true), nil
	case StatusBlocked:
		return Deny(DenyDeviceBlocked, nil, false), nil
	case StatusSuspicious:
		return Deny(DenyDeviceSuspicious, nil, false), nil
	}

	// Expiry is a derived overlay on TRUSTED, not a stored state. An expired
	// device re-enters PENDING; nothing else on the record is cleared.
	if dev.IsExpired() {
		dev.Status = StatusPending
		if _, err := g.deviceRepository.Save(ctx, dev); err != nil {
			return Decision{}, err
		}
		slog.Info("Device trust expired, re-pending", "deviceID", dev.ID)
		return Deny(DenyDeviceExpired, &dev.ID, true), nil
	}

	dev.LastSeen = time.Now().UTC()
	dev.LastIPAddress = sourceIP
	if _, err := g.deviceRepository.Save(ctx, dev); err != nil {
		return Decision{}, err
	}
	return Allow(), nil
}
