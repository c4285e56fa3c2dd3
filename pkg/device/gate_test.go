package device

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository wraps a repository and counts write operations so tests
// can assert how many writes one evaluation performed.
type countingRepository struct {
	DeviceRepository
	creates atomic.Int64
	saves   atomic.Int64
}

func (r *countingRepository) CreatePending(ctx context.Context, params CreatePendingParams) (TrustedDevice, error) {
	r.creates.Add(1)
	return r.DeviceRepository.CreatePending(ctx, params)
}

func (r *countingRepository) Save(ctx context.Context, dev TrustedDevice) (TrustedDevice, error) {
	r.saves.Add(1)
	return r.DeviceRepository.Save(ctx, dev)
}

func (r *countingRepository) writes() int64 {
	return r.creates.Load() + r.saves.Load()
}

func testSignals() Signals {
	return Signals{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
	}
}

func TestTrustGate_NewDevice(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	repo := &countingRepository{DeviceRepository: inmem}
	gate := NewTrustGate(repo)
	ctx := context.Background()
	accountID := uuid.New()

	decision, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyNewDevice, decision.Reason)
	assert.True(t, decision.RequiresApproval)
	require.NotNil(t, decision.DeviceID)
	assert.Equal(t, int64(1), repo.writes())

	// The record it created is PENDING with parsed attributes
	created, err := inmem.FindByID(ctx, *decision.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, accountID, created.AccountID)
	assert.Equal(t, "Chrome", created.Browser)
	assert.Equal(t, "203.0.113.7", created.LastIPAddress)
	assert.Equal(t, created.FirstSeen, created.LastSeen)
}

func TestTrustGate_PendingDevice(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	first, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	repo := &countingRepository{DeviceRepository: inmem}
	gate = NewTrustGate(repo)

	// A pending device stays pending; no write happens
	second, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.8")
	require.NoError(t, err)

	assert.False(t, second.Allowed)
	assert.Equal(t, DenyDevicePending, second.Reason)
	assert.True(t, second.RequiresApproval)
	require.NotNil(t, second.DeviceID)
	assert.Equal(t, *first.DeviceID, *second.DeviceID)
	assert.Equal(t, int64(0), repo.writes())

	// Repeated denials keep the same id
	third, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, *first.DeviceID, *third.DeviceID)
}

func TestTrustGate_TrustedDevice(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	approval := NewApprovalService(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	_, err = approval.Approve(ctx, *pending.DeviceID, ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)

	repo := &countingRepository{DeviceRepository: inmem}
	gate = NewTrustGate(repo)

	before, err := inmem.FindByID(ctx, *pending.DeviceID)
	require.NoError(t, err)

	decision, err := gate.Evaluate(ctx, accountID, testSignals(), "198.51.100.4")
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), repo.saves.Load())
	assert.Equal(t, int64(0), repo.creates.Load())

	after, err := inmem.FindByID(ctx, *pending.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", after.LastIPAddress)
	assert.True(t, after.LastSeen.After(before.LastSeen) || after.LastSeen.Equal(before.LastSeen))
	assert.Equal(t, StatusTrusted, after.Status)
}

func TestTrustGate_BlockedDevice(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	approval := NewApprovalService(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	_, err = approval.Approve(ctx, *pending.DeviceID, ApproveParams{
		Status:     StatusBlocked,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)

	repo := &countingRepository{DeviceRepository: inmem}
	gate = NewTrustGate(repo)

	decision, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDeviceBlocked, decision.Reason)
	assert.False(t, decision.RequiresApproval)
	assert.Nil(t, decision.DeviceID)
	assert.Equal(t, int64(0), repo.writes())
}

func TestTrustGate_SuspiciousDevice(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	approval := NewApprovalService(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	_, err = approval.Approve(ctx, *pending.DeviceID, ApproveParams{
		Status:     StatusSuspicious,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)

	decision, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDeviceSuspicious, decision.Reason)
	assert.False(t, decision.RequiresApproval)
	assert.Nil(t, decision.DeviceID)
}

func TestTrustGate_ExpiredTrustReenters(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	approval := NewApprovalService(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)
	deviceID := *pending.DeviceID

	approver := uuid.New()
	_, err = approval.Approve(ctx, deviceID, ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: approver,
	})
	require.NoError(t, err)

	// Age the trust past its expiry
	dev, err := inmem.FindByID(ctx, deviceID)
	require.NoError(t, err)
	expired := time.Now().UTC().Add(-time.Hour)
	dev.ExpiresAt = &expired
	_, err = inmem.Save(ctx, dev)
	require.NoError(t, err)

	repo := &countingRepository{DeviceRepository: inmem}
	gate = NewTrustGate(repo)

	decision, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDeviceExpired, decision.Reason)
	assert.True(t, decision.RequiresApproval)
	require.NotNil(t, decision.DeviceID)
	assert.Equal(t, deviceID, *decision.DeviceID)
	assert.Equal(t, int64(1), repo.saves.Load())

	// Re-pended, but the approval history stays in place
	after, err := inmem.FindByID(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, after.Status)
	require.NotNil(t, after.ApprovedBy)
	assert.Equal(t, approver, *after.ApprovedBy)
	assert.NotNil(t, after.ExpiresAt)

	// While still pending the expired reason no longer applies
	again, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, DenyDevicePending, again.Reason)
}

func TestTrustGate_ConcurrentFirstSight(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	repo := &countingRepository{DeviceRepository: inmem}
	gate := NewTrustGate(repo)
	ctx := context.Background()
	accountID := uuid.New()

	const racers = 16
	decisions := make([]Decision, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
		}(i)
	}
	wg.Wait()

	// Every call resolved without error and was denied; racers that lost the
	// create race re-read and observed the pending record, never a Save.
	assert.Equal(t, int64(0), repo.saves.Load())
	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, decisions[i].Allowed)
		require.NotNil(t, decisions[i].DeviceID)
	}

	first := *decisions[0].DeviceID
	for i := 1; i < racers; i++ {
		assert.Equal(t, first, *decisions[i].DeviceID)
	}

	devices, err := inmem.ListForAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestTrustGate_SharedFingerprintAcrossAccounts(t *testing.T) {
	// The registry keys on fingerprint alone, so two accounts on one browser
	// collide on the same record; the second account observes the record the
	// first account created.
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	ctx := context.Background()

	first, err := gate.Evaluate(ctx, uuid.New(), testSignals(), "203.0.113.7")
	require.NoError(t, err)

	second, err := gate.Evaluate(ctx, uuid.New(), testSignals(), "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, DenyNewDevice, first.Reason)
	assert.Equal(t, DenyDevicePending, second.Reason)
	assert.Equal(t, *first.DeviceID, *second.DeviceID)
}

func TestTrustGate_RevokedDeviceDenied(t *testing.T) {
	inmem := NewInMemDeviceRepository()
	gate := NewTrustGate(inmem)
	approval := NewApprovalService(inmem)
	ctx := context.Background()
	accountID := uuid.New()

	pending, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)
	deviceID := *pending.DeviceID

	_, err = approval.Approve(ctx, deviceID, ApproveParams{
		Status:     StatusTrusted,
		ApprovedBy: uuid.New(),
	})
	require.NoError(t, err)

	allowed, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)

	_, err = approval.Revoke(ctx, deviceID)
	require.NoError(t, err)

	// Blocked is terminal for the gate; only a fresh admin decision changes it
	denied, err := gate.Evaluate(ctx, accountID, testSignals(), "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyDeviceBlocked, denied.Reason)
}
