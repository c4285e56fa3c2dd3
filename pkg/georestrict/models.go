// Package georestrict stores per-facility geographic access policies. The
// records are pass-through configuration data: enforcement against attempt
// locations is a separate concern and is not evaluated here.
package georestrict

import (
	"time"

	"github.com/google/uuid"
)

// GeographicRestriction is a per-facility country access policy. Allowed and
// blocked lists hold ISO 3166-1 alpha-2 country codes.
type GeographicRestriction struct {
	ID               uuid.UUID  `json:"id"`
	FacilityID       *uuid.UUID `json:"facility_id,omitempty"`
	AllowedCountries []string   `json:"allowed_countries"`
	BlockedCountries []string   `json:"blocked_countries"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateParams captures the inputs for creating a restriction record
type CreateParams struct {
	FacilityID       *uuid.UUID
	AllowedCountries []string
	BlockedCountries []string
	Active           bool
}
