package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// ApprovalService applies administrator decisions to device trust records.
// Permission checks happen upstream; this service only accepts an
// already-authorized approver id.
type ApprovalService struct {
	deviceRepository DeviceRepository
}

// NewApprovalService creates a new approval service
func NewApprovalService(deviceRepository DeviceRepository) *ApprovalService {
	return &ApprovalService{deviceRepository: deviceRepository}
}

// ApproveParams captures an administrator's decision on a device
type ApproveParams struct {
	Status Status
	Notes  string
	// ExpiresInDays, when positive, sets the trust expiry to now + N days.
	// Zero leaves any previously set expiry untouched.
	ExpiresInDays int
	ApprovedBy    uuid.UUID
}

// Approve sets a device's trust status along with approval metadata. The
// target status must be one of TRUSTED, BLOCKED or SUSPICIOUS; PENDING is
// only ever entered automatically.
func (s *ApprovalService) Approve(ctx context.Context, deviceID uuid.UUID, params ApproveParams) (TrustedDevice, error) {
	switch params.Status {
	case StatusTrusted, StatusBlocked, StatusSuspicious:
	default:
		return TrustedDevice{}, securityerrors.InvalidInput("status", "must be trusted, blocked or suspicious")
	}

	dev, err := s.deviceRepository.FindByID(ctx, deviceID)
	if err != nil {
		return TrustedDevice{}, err
	}

	now := time.Now().UTC()
	dev.Status = params.Status
	dev.Notes = params.Notes
	dev.ApprovedBy = &params.ApprovedBy
	dev.ApprovedAt = &now

	if params.ExpiresInDays > 0 {
		expiresAt := now.AddDate(0, 0, params.ExpiresInDays)
		dev.ExpiresAt = &expiresAt
	}

	saved, err := s.deviceRepository.Save(ctx, dev)
	if err != nil {
		return TrustedDevice{}, err
	}

	slog.Info("Device approval applied",
		"deviceID", deviceID, "status", saved.Status, "approvedBy", params.ApprovedBy)
	return saved, nil
}

// Revoke blocks a device unconditionally, leaving approval metadata from the
// original decision in place for the audit trail.
func (s *ApprovalService) Revoke(ctx context.Context, deviceID uuid.UUID) (TrustedDevice, error) {
	dev, err := s.deviceRepository.FindByID(ctx, deviceID)
	if err != nil {
		return TrustedDevice{}, err
	}

	dev.Status = StatusBlocked
	saved, err := s.deviceRepository.Save(ctx, dev)
	if err != nil {
		return TrustedDevice{}, err
	}

	slog.Info("Device revoked", "deviceID", deviceID)
	return saved, nil
}

// Get retrieves one device trust record by ID
func (s *ApprovalService) Get(ctx context.Context, deviceID uuid.UUID) (TrustedDevice, error) {
	return s.deviceRepository.FindByID(ctx, deviceID)
}

// ListPending returns devices awaiting approval, optionally scoped to one facility
func (s *ApprovalService) ListPending(ctx context.Context, facilityID *uuid.UUID) ([]TrustedDevice, error) {
	return s.deviceRepository.ListPending(ctx, ListPendingParams{FacilityID: facilityID})
}

// ListForAccount returns all devices registered for an account
func (s *ApprovalService) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]TrustedDevice, error) {
	return s.deviceRepository.ListForAccount(ctx, accountID)
}
