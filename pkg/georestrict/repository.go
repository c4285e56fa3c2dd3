package georestrict

import (
	"context"

	"github.com/google/uuid"
)

// RestrictionRepository defines the interface for restriction storage
type RestrictionRepository interface {
	// Create persists a new restriction record
	Create(ctx context.Context, params CreateParams) (GeographicRestriction, error)

	// FindByID retrieves a restriction by its unique ID
	FindByID(ctx context.Context, id uuid.UUID) (GeographicRestriction, error)

	// List returns restrictions, optionally filtered to one facility
	List(ctx context.Context, facilityID *uuid.UUID) ([]GeographicRestriction, error)
}
