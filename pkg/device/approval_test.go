package device

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

func seedPendingDevice(t *testing.T, repo DeviceRepository, accountID uuid.UUID) TrustedDevice {
	t.Helper()
	dev, err := repo.CreatePending(context.Background(), CreatePendingParams{
		AccountID:   accountID,
		Fingerprint: uuid.NewString(),
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		SourceIP:    "203.0.113.7",
	})
	require.NoError(t, err)
	return dev
}

func TestApprovalService_Approve(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	ctx := context.Background()
	approver := uuid.New()

	dev := seedPendingDevice(t, repo, uuid.New())

	before := time.Now().UTC()
	approved, err := service.Approve(ctx, dev.ID, ApproveParams{
		Status:        StatusTrusted,
		Notes:         "verified with clinic front desk",
		ExpiresInDays: 30,
		ApprovedBy:    approver,
	})
	after := time.Now().UTC()
	require.NoError(t, err)

	assert.Equal(t, StatusTrusted, approved.Status)
	assert.Equal(t, "verified with clinic front desk", approved.Notes)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver, *approved.ApprovedBy)

	require.NotNil(t, approved.ApprovedAt)
	assert.False(t, approved.ApprovedAt.Before(before))
	assert.False(t, approved.ApprovedAt.After(after))

	require.NotNil(t, approved.ExpiresAt)
	assert.WithinDuration(t, before.AddDate(0, 0, 30), *approved.ExpiresAt, 5*time.Second)
}

func TestApprovalService_ApproveRejectsInvalidStatus(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	ctx := context.Background()

	dev := seedPendingDevice(t, repo, uuid.New())

	for _, status := range []Status{StatusPending, Status("deleted"), Status("")} {
		_, err := service.Approve(ctx, dev.ID, ApproveParams{
			Status:     status,
			ApprovedBy: uuid.New(),
		})
		require.Error(t, err)
		assert.True(t, securityerrors.IsCode(err, securityerrors.ErrCodeInvalidInput))
	}

	// Record unchanged after rejected inputs
	unchanged, err := repo.FindByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, unchanged.Status)
	assert.Nil(t, unchanged.ApprovedBy)
}

func TestApprovalService_ApproveUnknownDevice(t *testing.T) {
	service := NewApprovalService(NewInMemDeviceRepository())

	_, err := service.Approve(context.Background(), uuid.New(), ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, securityerrors.IsCode(err, securityerrors.ErrCodeDeviceNotFound))
}

func TestApprovalService_ZeroExpiryLeavesExistingExpiry(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	ctx := context.Background()

	dev := seedPendingDevice(t, repo, uuid.New())

	first, err := service.Approve(ctx, dev.ID, ApproveParams{
		Status:        StatusTrusted,
		ExpiresInDays: 7,
		ApprovedBy:    uuid.New(),
	})
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)
	originalExpiry := *first.ExpiresAt

	// A later decision without an expiry keeps the earlier expiry as-is
	second, err := service.Approve(ctx, dev.ID, ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.NotNil(t, second.ExpiresAt)
	assert.Equal(t, originalExpiry, *second.ExpiresAt)
}

func TestApprovalService_Revoke(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	ctx := context.Background()
	approver := uuid.New()

	dev := seedPendingDevice(t, repo, uuid.New())

	_, err := service.Approve(ctx, dev.ID, ApproveParams{
		Status:     StatusTrusted,
		Notes:      "approved on site",
		ApprovedBy: approver,
	})
	require.NoError(t, err)

	revoked, err := service.Revoke(ctx, dev.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, revoked.Status)

	// The original approval metadata survives for the audit trail
	require.NotNil(t, revoked.ApprovedBy)
	assert.Equal(t, approver, *revoked.ApprovedBy)
	assert.Equal(t, "approved on site", revoked.Notes)
}

func TestApprovalService_ListPending(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	ctx := context.Background()

	first := seedPendingDevice(t, repo, uuid.New())
	second := seedPendingDevice(t, repo, uuid.New())
	third := seedPendingDevice(t, repo, uuid.New())

	// Age the records so the ordering is observable
	repo.touch(first.Fingerprint, time.Now().UTC().Add(-3*time.Hour), time.Now().UTC().Add(-3*time.Hour))
	repo.touch(second.Fingerprint, time.Now().UTC().Add(-2*time.Hour), time.Now().UTC().Add(-2*time.Hour))
	repo.touch(third.Fingerprint, time.Now().UTC().Add(-1*time.Hour), time.Now().UTC().Add(-1*time.Hour))

	// Decide one of them; it leaves the pending queue
	_, err := service.Approve(ctx, second.ID, ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)

	pending, err := service.ListPending(ctx, nil)
	require.NoError(t, err)

	require.Len(t, pending, 2)
	assert.Equal(t, third.ID, pending[0].ID) // newest first
	assert.Equal(t, first.ID, pending[1].ID)
}

func TestApprovalService_ListPendingScopedToFacility(t *testing.T) {
	facilityA := uuid.New()
	facilityB := uuid.New()
	accountA := uuid.New()
	accountB := uuid.New()

	repo := NewInMemDeviceRepositoryWithOptions(DeviceRepositoryOptions{
		ScopeResolver: func(accountID uuid.UUID) (uuid.UUID, bool) {
			switch accountID {
			case accountA:
				return facilityA, true
			case accountB:
				return facilityB, true
			}
			return uuid.Nil, false
		},
	})
	service := NewApprovalService(repo)

	devA := seedPendingDevice(t, repo, accountA)
	seedPendingDevice(t, repo, accountB)

	scoped, err := service.ListPending(context.Background(), &facilityA)
	require.NoError(t, err)

	require.Len(t, scoped, 1)
	assert.Equal(t, devA.ID, scoped[0].ID)
}

func TestApprovalService_ListForAccount(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewApprovalService(repo)
	accountID := uuid.New()

	mine := seedPendingDevice(t, repo, accountID)
	seedPendingDevice(t, repo, uuid.New())

	devices, err := service.ListForAccount(context.Background(), accountID)
	require.NoError(t, err)

	require.Len(t, devices, 1)
	assert.Equal(t, mine.ID, devices[0].ID)
}
