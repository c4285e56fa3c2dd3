package georestrict

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// InMemRestrictionRepository implements RestrictionRepository using an
// in-memory map
type InMemRestrictionRepository struct {
	restrictions map[uuid.UUID]GeographicRestriction
	mu           sync.Mutex
}

// NewInMemRestrictionRepository creates a new in-memory restriction repository
func NewInMemRestrictionRepository() *InMemRestrictionRepository {
	return &InMemRestrictionRepository{
		restrictions: make(map[uuid.UUID]GeographicRestriction),
	}
}

// Create persists a new restriction record
func (r *InMemRestrictionRepository) Create(ctx context.Context, params CreateParams) (GeographicRestriction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restriction := GeographicRestriction{
		ID:               uuid.New(),
		FacilityID:       params.FacilityID,
		AllowedCountries: append([]string{}, params.AllowedCountries...),
		BlockedCountries: append([]string{}, params.BlockedCountries...),
		Active:           params.Active,
		CreatedAt:        time.Now().UTC(),
	}
	r.restrictions[restriction.ID] = restriction

	slog.Debug("Geographic restriction created", "id", restriction.ID, "facility_id", restriction.FacilityID)
	return restriction, nil
}

// FindByID retrieves a restriction by its unique ID
func (r *InMemRestrictionRepository) FindByID(ctx context.Context, id uuid.UUID) (GeographicRestriction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restriction, exists := r.restrictions[id]
	if !exists {
		return GeographicRestriction{}, securityerrors.NotFound("geographic restriction", id.String())
	}
	return restriction, nil
}

// List returns restrictions, optionally filtered to one facility
func (r *InMemRestrictionRepository) List(ctx context.Context, facilityID *uuid.UUID) ([]GeographicRestriction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var restrictions []GeographicRestriction
	for _, restriction := range r.restrictions {
		if facilityID != nil {
			if restriction.FacilityID == nil || *restriction.FacilityID != *facilityID {
				continue
			}
		}
		restrictions = append(restrictions, restriction)
	}

	sort.Slice(restrictions, func(i, j int) bool {
		return restrictions[i].CreatedAt.After(restrictions[j].CreatedAt)
	})
	return restrictions, nil
}
