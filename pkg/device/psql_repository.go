package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// uniqueViolation is the PostgreSQL error code raised when the fingerprint
// unique index rejects a duplicate insert.
const uniqueViolation = "23505"

const deviceColumns = `id, account_id, fingerprint, device_name, browser, os, device_type,
		last_ip_address, status, first_seen, last_seen, approved_by, approved_at, notes, expires_at`

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

// FindByFingerprint retrieves a device by its fingerprint
func (r *PostgresDeviceRepository) FindByFingerprint(ctx context.Context, fingerprint string) (TrustedDevice, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM trusted_device
		WHERE fingerprint = $1
	`

	row := r.db.QueryRow(ctx, query, fingerprint)
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device not found", "fingerprint", fingerprint)
			return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
		}
		slog.Error("Failed to get device", "err", err, "fingerprint", fingerprint)
		return TrustedDevice{}, securityerrors.StorageUnavailable(err, "find device by fingerprint")
	}
	return dev, nil
}

// FindByID retrieves a device by its id
func (r *PostgresDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (TrustedDevice, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM trusted_device
		WHERE id = $1
	`

	row := r.db.QueryRow(ctx, query, id)
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device not found", "deviceID", id)
			return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
		}
		slog.Error("Failed to get device", "err", err, "deviceID", id)
		return TrustedDevice{}, securityerrors.StorageUnavailable(err, "find device by id")
	}
	return dev, nil
}

// CreatePending creates a new device in PENDING status. The fingerprint
// unique index is the authority on the uniqueness invariant; a concurrent
// creation race surfaces as FINGERPRINT_EXISTS to exactly one caller.
func (r *PostgresDeviceRepository) CreatePending(ctx context.Context, params CreatePendingParams) (TrustedDevice, error) {
	dev := newPendingDevice(params)

	query := `
		INSERT INTO trusted_device (
			id, account_id, fingerprint, device_name, browser, os, device_type,
			last_ip_address, status, first_seen, last_seen, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING ` + deviceColumns

	row := r.db.QueryRow(ctx, query,
		dev.ID,
		dev.AccountID,
		dev.Fingerprint,
		dev.DeviceName,
		dev.Browser,
		dev.OS,
		dev.DeviceType,
		dev.LastIPAddress,
		dev.Status,
		dev.FirstSeen,
		dev.LastSeen,
		dev.Notes,
	)

	created, err := scanDevice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			slog.Debug("Device already exists", "fingerprint", params.Fingerprint)
			return TrustedDevice{}, securityerrors.Wrap(err, securityerrors.ErrCodeFingerprintExists, "device fingerprint already registered")
		}
		slog.Error("Failed to create pending device", "err", err, "fingerprint", params.Fingerprint)
		return TrustedDevice{}, securityerrors.StorageUnavailable(err, "create pending device")
	}

	slog.Debug("Pending device created", "fingerprint", created.Fingerprint, "accountID", created.AccountID)
	return created, nil
}

// Save persists mutations to an existing device. Last writer wins.
func (r *PostgresDeviceRepository) Save(ctx context.Context, dev TrustedDevice) (TrustedDevice, error) {
	query := `
		UPDATE trusted_device
		SET status = $2, last_seen = $3, last_ip_address = $4,
			approved_by = $5, approved_at = $6, notes = $7, expires_at = $8
		WHERE id = $1
		RETURNING ` + deviceColumns

	row := r.db.QueryRow(ctx, query,
		dev.ID,
		dev.Status,
		dev.LastSeen,
		dev.LastIPAddress,
		dev.ApprovedBy,
		dev.ApprovedAt,
		dev.Notes,
		dev.ExpiresAt,
	)

	saved, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device not found when saving", "deviceID", dev.ID)
			return TrustedDevice{}, securityerrors.New(securityerrors.ErrCodeDeviceNotFound, "device not found")
		}
		slog.Error("Failed to save device", "err", err, "deviceID", dev.ID)
		return TrustedDevice{}, securityerrors.StorageUnavailable(err, "save device")
	}

	slog.Debug("Device saved", "fingerprint", saved.Fingerprint, "status", saved.Status)
	return saved, nil
}

// ListPending returns devices awaiting approval ordered by first seen, newest
// first. With a facility filter the account table supplies the scope.
func (r *PostgresDeviceRepository) ListPending(ctx context.Context, params ListPendingParams) ([]TrustedDevice, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM trusted_device
		WHERE status = $1
		ORDER BY first_seen DESC
	`
	args := []interface{}{StatusPending}

	if params.FacilityID != nil {
		query = `
			SELECT d.id, d.account_id, d.fingerprint, d.device_name, d.browser, d.os, d.device_type,
				d.last_ip_address, d.status, d.first_seen, d.last_seen, d.approved_by, d.approved_at, d.notes, d.expires_at
			FROM trusted_device d
			JOIN account a ON a.id = d.account_id
			WHERE d.status = $1 AND a.facility_id = $2
			ORDER BY d.first_seen DESC
		`
		args = append(args, *params.FacilityID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		slog.Error("Failed to list pending devices", "err", err)
		return nil, securityerrors.StorageUnavailable(err, "list pending devices")
	}
	defer rows.Close()

	devices, err := collectDevices(rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("Found pending devices", "count", len(devices))
	return devices, nil
}

// ListForAccount returns all devices for an account ordered by last seen, newest first
func (r *PostgresDeviceRepository) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]TrustedDevice, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM trusted_device
		WHERE account_id = $1
		ORDER BY last_seen DESC
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		slog.Error("Failed to list devices for account", "err", err, "accountID", accountID)
		return nil, securityerrors.StorageUnavailable(err, "list devices for account")
	}
	defer rows.Close()

	devices, err := collectDevices(rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("Found devices for account", "accountID", accountID, "count", len(devices))
	return devices, nil
}

// WithTx returns a new repository bound to the given transaction
func (r *PostgresDeviceRepository) WithTx(tx interface{}) DeviceRepository {
	if tx == nil {
		return r
	}

	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		slog.Warn("Unsupported transaction type", "type", reflect.TypeOf(tx))
		return r
	}

	return NewPostgresDeviceRepository(pgxTx)
}

func scanDevice(row pgx.Row) (TrustedDevice, error) {
	var dev TrustedDevice
	var approvedBy uuid.NullUUID
	var approvedAt, expiresAt sql.NullTime

	err := row.Scan(
		&dev.ID,
		&dev.AccountID,
		&dev.Fingerprint,
		&dev.DeviceName,
		&dev.Browser,
		&dev.OS,
		&dev.DeviceType,
		&dev.LastIPAddress,
		&dev.Status,
		&dev.FirstSeen,
		&dev.LastSeen,
		&approvedBy,
		&approvedAt,
		&dev.Notes,
		&expiresAt,
	)
	if err != nil {
		return TrustedDevice{}, err
	}

	if approvedBy.Valid {
		dev.ApprovedBy = &approvedBy.UUID
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		dev.ApprovedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		dev.ExpiresAt = &t
	}
	return dev, nil
}

func collectDevices(rows pgx.Rows) ([]TrustedDevice, error) {
	var devices []TrustedDevice
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			slog.Error("Failed to scan device", "err", err)
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over devices", "err", err)
		return nil, fmt.Errorf("error iterating over devices: %w", err)
	}
	return devices, nil
}
