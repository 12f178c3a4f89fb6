// Package places fetches real-world places near a point, the pipeline's
// stage 4 collaborator used to enrich and verify LLM-suggested candidates.
// The default Provider talks to the Google Places API (Text Search v1).
package places

import (
	"context"

	"github.com/guberm/PlacesRecommendation/internal/model"
)

// Query describes a nearby-places search.
type Query struct {
	Latitude     float64
	Longitude    float64
	Category     model.Category
	RadiusMeters int
	MaxResults   int
}

// Provider fetches real-world places for enrichment/verification.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Nearby(ctx context.Context, q Query) ([]model.Place, error)
	Available() bool
}
