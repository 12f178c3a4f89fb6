package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/consensus"
	"github.com/guberm/PlacesRecommendation/internal/model"
	"github.com/guberm/PlacesRecommendation/internal/places"
)

// overlapMatchThreshold is the minimum word-overlap fraction accepted as a
// fuzzy name match between a recommendation and a real place.
const overlapMatchThreshold = 0.6

// runPlacesEnrichment fetches up to maxResults real places near the
// resolved coordinates, for the *first* requested category only — a
// latent limitation carried over unchanged rather than silently fixed
// (DESIGN.md lists it as an open question). It then
// fuzzy-matches every recommendation across every provider result against
// the fetched places, attaching the best match as EnrichedPlace.
//
// Enrichment failure, or geocoding being unavailable, is non-fatal: the
// stage simply leaves googlePlacesEnriched false and returns.
func runPlacesEnrichment(ctx context.Context, pc *pipelineContext, provider places.Provider, radiusMeters, maxResults int, log *zap.Logger) {
	if !pc.geocodingAvailable || provider == nil || !provider.Available() {
		return
	}

	category := pc.req.PrimaryCategory()
	nearby, err := provider.Nearby(ctx, places.Query{
		Latitude:     pc.lat,
		Longitude:    pc.lng,
		Category:     category,
		RadiusMeters: radiusMeters,
		MaxResults:   maxResults,
	})
	if err != nil || len(nearby) == 0 {
		log.Warn("enrichment: places lookup failed or empty", zap.Error(err))
		return
	}

	for gi := range pc.generations {
		if !pc.generations[gi].Success {
			continue
		}
		for ri := range pc.generations[gi].Recommendations {
			rec := &pc.generations[gi].Recommendations[ri]
			if match := bestPlaceMatch(*rec, nearby); match != nil {
				rec.EnrichedPlace = match
			}
		}
	}
	pc.googlePlacesEnriched = true
}

// bestPlaceMatch applies, in order: exact normalized equality, substring
// either direction, then word-overlap >= overlapMatchThreshold. The first
// rule to produce any match wins; ties within a rule keep the first hit.
func bestPlaceMatch(rec model.Recommendation, candidates []model.Place) *model.Place {
	recName := consensus.Normalize(rec.Name)
	if recName == "" {
		return nil
	}

	for i := range candidates {
		if consensus.Normalize(candidates[i].Name) == recName {
			return &candidates[i]
		}
	}
	for i := range candidates {
		placeName := consensus.Normalize(candidates[i].Name)
		if containsEither(recName, placeName) {
			return &candidates[i]
		}
	}

	best := -1
	bestScore := 0.0
	for i := range candidates {
		score := consensus.WordOverlap(rec.Name, candidates[i].Name)
		if score >= overlapMatchThreshold && score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best >= 0 {
		return &candidates[best]
	}
	return nil
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
