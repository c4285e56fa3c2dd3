package attempt

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

const attemptColumns = `id, account_id, username, ip_address, fingerprint, user_agent,
		success, failure_reason, country, city, attempted_at`

// PostgresAttemptRepository implements AttemptRepository using PostgreSQL
type PostgresAttemptRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresAttemptRepository creates a new PostgreSQL attempt repository
func NewPostgresAttemptRepository(db DBTX) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{db: db}
}

// Record appends one attempt
func (r *PostgresAttemptRepository) Record(ctx context.Context, attempt LoginAttempt) (LoginAttempt, error) {
	query := `
		INSERT INTO login_attempt (
			id, account_id, username, ip_address, fingerprint, user_agent,
			success, failure_reason, country, city, attempted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING ` + attemptColumns

	row := r.db.QueryRow(ctx, query,
		attempt.ID,
		attempt.AccountID,
		attempt.Username,
		attempt.IPAddress,
		attempt.Fingerprint,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.Country,
		attempt.City,
		attempt.AttemptedAt,
	)

	recorded, err := scanAttempt(row)
	if err != nil {
		slog.Error("Failed to record login attempt", "err", err, "username", attempt.Username)
		return LoginAttempt{}, securityerrors.StorageUnavailable(err, "record login attempt")
	}

	slog.Debug("Login attempt recorded", "username", recorded.Username, "ip", recorded.IPAddress, "success", recorded.Success)
	return recorded, nil
}

// CountFailuresSince counts failed attempts for the identifier within the window
func (r *PostgresAttemptRepository) CountFailuresSince(ctx context.Context, identifier string, kind IdentifierKind, since time.Time) (int, error) {
	column := "ip_address"
	if kind == IdentifierUsername {
		column = "username"
	}

	query := `
		SELECT COUNT(*)
		FROM login_attempt
		WHERE success = FALSE AND attempted_at >= $2 AND ` + column + ` = $1
	`

	var count int
	if err := r.db.QueryRow(ctx, query, identifier, since).Scan(&count); err != nil {
		slog.Error("Failed to count failed attempts", "err", err, "identifier", identifier, "kind", kind)
		return 0, securityerrors.StorageUnavailable(err, "count failed attempts")
	}

	slog.Debug("Counted failed attempts", "identifier", identifier, "kind", kind, "count", count)
	return count, nil
}

// ListRecent returns the newest attempts first, up to limit rows
func (r *PostgresAttemptRepository) ListRecent(ctx context.Context, limit int) ([]LoginAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM login_attempt
		ORDER BY attempted_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		slog.Error("Failed to list login attempts", "err", err)
		return nil, securityerrors.StorageUnavailable(err, "list login attempts")
	}
	defer rows.Close()

	var attempts []LoginAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			slog.Error("Failed to scan login attempt", "err", err)
			return nil, securityerrors.StorageUnavailable(err, "scan login attempt")
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over login attempts", "err", err)
		return nil, securityerrors.StorageUnavailable(err, "iterate login attempts")
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (LoginAttempt, error) {
	var attempt LoginAttempt
	var accountID uuid.NullUUID
	var fingerprint, userAgent, failureReason, country, city sql.NullString

	err := row.Scan(
		&attempt.ID,
		&accountID,
		&attempt.Username,
		&attempt.IPAddress,
		&fingerprint,
		&userAgent,
		&attempt.Success,
		&failureReason,
		&country,
		&city,
		&attempt.AttemptedAt,
	)
	if err != nil {
		return LoginAttempt{}, err
	}

	if accountID.Valid {
		attempt.AccountID = &accountID.UUID
	}
	attempt.Fingerprint = fingerprint.String
	attempt.UserAgent = userAgent.String
	attempt.FailureReason = failureReason.String
	attempt.Country = country.String
	attempt.City = city.String
	return attempt, nil
}
