// Package geocode resolves addresses to coordinates and back, the pipeline's
// stage 1 collaborator. The default Provider talks to the Google Geocoding
// API; callers may substitute any implementation satisfying this interface.
package geocode

import "context"

// Result is the outcome of a forward or reverse geocode lookup.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Matched     bool
}

// Provider resolves addresses to coordinates and coordinates to display
// names. Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider for logging and circuit-breaker keying.
	Name() string

	// Geocode resolves a free-text address to coordinates plus a canonical
	// display name. Matched is false (with no error) when the address could
	// not be resolved at all.
	Geocode(ctx context.Context, address string) (Result, error)

	// ReverseGeocode resolves coordinates to a display name. Matched is
	// false (with no error) when no name could be produced; callers should
	// then fall back to a formatted coordinate string, never fail the
	// request over this.
	ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error)

	// Available reports whether the provider is currently usable — e.g.
	// configured with an API key and not circuit-broken.
	Available() bool
}
