package device

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	dbName := "device_trust_db"
	dbUser := "device_trust"
	dbPassword := "pwd"

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "device_trust_db.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func createTestAccount(t *testing.T, pool *pgxpool.Pool, facilityID *uuid.UUID) uuid.UUID {
	t.Helper()
	accountID := uuid.New()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO account (id, username, facility_id) VALUES ($1, $2, $3)",
		accountID, "user-"+accountID.String(), facilityID)
	require.NoError(t, err)
	return accountID
}

func TestPostgresDeviceRepository_CreateAndFind(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()
	accountID := createTestAccount(t, pool, nil)

	fingerprint := "test_fingerprint_" + uuid.NewString()
	created, err := repo.CreatePending(ctx, CreatePendingParams{
		AccountID:   accountID,
		Fingerprint: fingerprint,
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1",
		SourceIP:    "203.0.113.7",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, accountID, created.AccountID)
	assert.Equal(t, DeviceTypeMobile, created.DeviceType)
	assert.Equal(t, "Safari", created.Browser)
	assert.Nil(t, created.ApprovedBy)
	assert.Nil(t, created.ExpiresAt)

	byFingerprint, err := repo.FindByFingerprint(ctx, fingerprint)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byFingerprint.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, fingerprint, byID.Fingerprint)
}

func TestPostgresDeviceRepository_DuplicateFingerprint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()

	params := CreatePendingParams{
		AccountID:   createTestAccount(t, pool, nil),
		Fingerprint: "test_fingerprint_" + uuid.NewString(),
		UserAgent:   "Test User Agent",
		SourceIP:    "203.0.113.7",
	}

	_, err := repo.CreatePending(ctx, params)
	require.NoError(t, err)

	// The unique index rejects the second insert with a conflict code the
	// gate can recognize
	_, err = repo.CreatePending(ctx, params)
	require.Error(t, err)
	assert.True(t, securityerrors.IsCode(err, securityerrors.ErrCodeFingerprintExists))
}

func TestPostgresDeviceRepository_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()

	_, err := repo.FindByFingerprint(ctx, "missing_fingerprint")
	require.Error(t, err)
	assert.True(t, securityerrors.IsCode(err, securityerrors.ErrCodeDeviceNotFound))

	_, err = repo.FindByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, securityerrors.IsCode(err, securityerrors.ErrCodeDeviceNotFound))
}

func TestPostgresDeviceRepository_Save(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()

	created, err := repo.CreatePending(ctx, CreatePendingParams{
		AccountID:   createTestAccount(t, pool, nil),
		Fingerprint: "test_fingerprint_" + uuid.NewString(),
		UserAgent:   "Test User Agent",
		SourceIP:    "203.0.113.7",
	})
	require.NoError(t, err)

	approver := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiresAt := now.AddDate(0, 0, 30)

	created.Status = StatusTrusted
	created.ApprovedBy = &approver
	created.ApprovedAt = &now
	created.Notes = "approved for clinic workstation"
	created.ExpiresAt = &expiresAt
	created.LastIPAddress = "198.51.100.4"

	saved, err := repo.Save(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, StatusTrusted, saved.Status)
	assert.Equal(t, "198.51.100.4", saved.LastIPAddress)
	require.NotNil(t, saved.ApprovedBy)
	assert.Equal(t, approver, *saved.ApprovedBy)
	require.NotNil(t, saved.ExpiresAt)
	assert.WithinDuration(t, expiresAt, *saved.ExpiresAt, time.Second)
	assert.Equal(t, "approved for clinic workstation", saved.Notes)
}

func TestPostgresDeviceRepository_ListPending(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()

	facilityA := uuid.New()
	facilityB := uuid.New()
	accountA := createTestAccount(t, pool, &facilityA)
	accountB := createTestAccount(t, pool, &facilityB)

	devA, err := repo.CreatePending(ctx, CreatePendingParams{
		AccountID:   accountA,
		Fingerprint: "test_fingerprint_" + uuid.NewString(),
		UserAgent:   "Test User Agent",
		SourceIP:    "203.0.113.7",
	})
	require.NoError(t, err)

	_, err = repo.CreatePending(ctx, CreatePendingParams{
		AccountID:   accountB,
		Fingerprint: "test_fingerprint_" + uuid.NewString(),
		UserAgent:   "Test User Agent",
		SourceIP:    "203.0.113.8",
	})
	require.NoError(t, err)

	all, err := repo.ListPending(ctx, ListPendingParams{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := repo.ListPending(ctx, ListPendingParams{FacilityID: &facilityA})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, devA.ID, scoped[0].ID)
}

func TestPostgresDeviceRepository_ListForAccount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresDeviceRepository(pool)
	ctx := context.Background()
	accountID := createTestAccount(t, pool, nil)

	for i := 0; i < 3; i++ {
		_, err := repo.CreatePending(ctx, CreatePendingParams{
			AccountID:   accountID,
			Fingerprint: "test_fingerprint_" + uuid.NewString(),
			UserAgent:   "Test User Agent",
			SourceIP:    "203.0.113.7",
		})
		require.NoError(t, err)
	}

	devices, err := repo.ListForAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, devices, 3)

	// Newest first by last seen
	for i := 1; i < len(devices); i++ {
		assert.False(t, devices[i-1].LastSeen.Before(devices[i].LastSeen))
	}
}
