package georestrict

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

const restrictionColumns = `id, facility_id, allowed_countries, blocked_countries, active, created_at`

// PostgresRestrictionRepository implements RestrictionRepository using
// PostgreSQL
type PostgresRestrictionRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresRestrictionRepository creates a new PostgreSQL restriction repository
func NewPostgresRestrictionRepository(db DBTX) *PostgresRestrictionRepository {
	return &PostgresRestrictionRepository{db: db}
}

// Create persists a new restriction record
func (r *PostgresRestrictionRepository) Create(ctx context.Context, params CreateParams) (GeographicRestriction, error) {
	query := `
		INSERT INTO geographic_restriction (
			id, facility_id, allowed_countries, blocked_countries, active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING ` + restrictionColumns

	row := r.db.QueryRow(ctx, query,
		uuid.New(),
		params.FacilityID,
		params.AllowedCountries,
		params.BlockedCountries,
		params.Active,
		time.Now().UTC(),
	)

	restriction, err := scanRestriction(row)
	if err != nil {
		slog.Error("Failed to create geographic restriction", "err", err)
		return GeographicRestriction{}, securityerrors.StorageUnavailable(err, "create geographic restriction")
	}
	return restriction, nil
}

// FindByID retrieves a restriction by its unique ID
func (r *PostgresRestrictionRepository) FindByID(ctx context.Context, id uuid.UUID) (GeographicRestriction, error) {
	query := `SELECT ` + restrictionColumns + ` FROM geographic_restriction WHERE id = $1`

	restriction, err := scanRestriction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GeographicRestriction{}, securityerrors.NotFound("geographic restriction", id.String())
		}
		slog.Error("Failed to find geographic restriction", "err", err, "id", id)
		return GeographicRestriction{}, securityerrors.StorageUnavailable(err, "find geographic restriction")
	}
	return restriction, nil
}

// List returns restrictions, optionally filtered to one facility
func (r *PostgresRestrictionRepository) List(ctx context.Context, facilityID *uuid.UUID) ([]GeographicRestriction, error) {
	query := `SELECT ` + restrictionColumns + ` FROM geographic_restriction ORDER BY created_at DESC`
	args := []interface{}{}
	if facilityID != nil {
		query = `SELECT ` + restrictionColumns + ` FROM geographic_restriction WHERE facility_id = $1 ORDER BY created_at DESC`
		args = append(args, *facilityID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		slog.Error("Failed to list geographic restrictions", "err", err)
		return nil, securityerrors.StorageUnavailable(err, "list geographic restrictions")
	}
	defer rows.Close()

	var restrictions []GeographicRestriction
	for rows.Next() {
		restriction, err := scanRestriction(rows)
		if err != nil {
			slog.Error("Failed to scan geographic restriction", "err", err)
			return nil, securityerrors.StorageUnavailable(err, "scan geographic restriction")
		}
		restrictions = append(restrictions, restriction)
	}
	if err := rows.Err(); err != nil {
		return nil, securityerrors.StorageUnavailable(err, "iterate geographic restrictions")
	}
	return restrictions, nil
}

func scanRestriction(row pgx.Row) (GeographicRestriction, error) {
	var restriction GeographicRestriction
	var facilityID uuid.NullUUID

	err := row.Scan(
		&restriction.ID,
		&facilityID,
		&restriction.AllowedCountries,
		&restriction.BlockedCountries,
		&restriction.Active,
		&restriction.CreatedAt,
	)
	if err != nil {
		return GeographicRestriction{}, err
	}
	if facilityID.Valid {
		restriction.FacilityID = &facilityID.UUID
	}
	return restriction, nil
}
