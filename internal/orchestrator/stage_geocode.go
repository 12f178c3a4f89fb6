package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/geocode"
)

// runGeocode resolves the request to a (lat, lng, resolvedAddress) triple.
// A request with coordinates always succeeds; address-only resolution can
// fail non-fatally, in which case geocodingAvailable is false and
// downstream stages (enrichment, cache key selection) must degrade.
func runGeocode(ctx context.Context, pc *pipelineContext, provider geocode.Provider, log *zap.Logger) {
	if pc.req.HasCoordinates() {
		pc.lat = *pc.req.Latitude
		pc.lng = *pc.req.Longitude
		pc.geocodingAvailable = true

		if provider != nil && provider.Available() {
			if res, err := provider.ReverseGeocode(ctx, pc.lat, pc.lng); err == nil && res.DisplayName != "" {
				pc.resolvedAddress = res.DisplayName
				return
			}
			log.Debug("geocode: reverse lookup unavailable, using coordinate string")
		}
		pc.resolvedAddress = fmt.Sprintf("%.5f, %.5f", pc.lat, pc.lng)
		return
	}

	if provider == nil || !provider.Available() {
		pc.geocodingAvailable = false
		log.Warn("geocode: no geocoder configured for address request")
		return
	}

	res, err := provider.Geocode(ctx, pc.req.Address)
	if err != nil || !res.Matched {
		pc.geocodingAvailable = false
		log.Warn("geocode: forward lookup failed, falling back to raw address", zap.Error(err))
		return
	}

	pc.lat, pc.lng = res.Latitude, res.Longitude
	pc.resolvedAddress = res.DisplayName
	pc.geocodingAvailable = true
}
