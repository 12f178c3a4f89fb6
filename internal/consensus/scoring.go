package consensus

import (
	"math"
	"sort"
	"strings"

	"github.com/guberm/PlacesRecommendation/internal/model"
)

// Weights holds the tunable coefficients of the consensus scoring formula,
// grounded on this codebase's weighted-feature-fusion pattern for combining
// several independent signals into one bounded score.
type Weights struct {
	BaseScoreWeight       float64
	ValidationScoreWeight float64
	AgreementBonusPerPeer float64
	AgreementBonusCap     float64
	RealPlaceBonus        float64
	RatingBonusMax        float64
	InaccurateFlagPenalty float64
	OutOfRangeFlagPenalty float64
}

// DefaultWeights returns the coefficients specified for consensus scoring.
func DefaultWeights() Weights {
	return Weights{
		BaseScoreWeight:       0.40,
		ValidationScoreWeight: 0.35,
		AgreementBonusPerPeer: 0.05,
		AgreementBonusCap:     0.20,
		RealPlaceBonus:        0.15,
		RatingBonusMax:        0.05,
		InaccurateFlagPenalty: 0.20,
		OutOfRangeFlagPenalty: 0.30,
	}
}

// Score computes the fused, ranked, trimmed candidate list from every
// successful generation and every cross-validation result, per the
// pipeline's consensus scoring stage. It is pure — no I/O — and
// deterministic given the same inputs.
func Score(
	generations []model.ProviderResult,
	validations []model.CrossValidationResult,
	weights Weights,
	maxResults int,
) []model.Recommendation {
	groups := groupByNormalizedName(generations)
	validationByKey := indexValidationsByKey(validations)

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	scored := make([]model.Recommendation, 0, len(groups))
	for _, key := range keys {
		scored = append(scored, buildRecommendation(key, groups[key], validationByKey[key], weights))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].BaseConfidence != scored[j].BaseConfidence {
			return scored[i].BaseConfidence > scored[j].BaseConfidence
		}
		return scored[i].AgreementCount > scored[j].AgreementCount
	})

	if maxResults > 0 && len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	return scored
}

func groupByNormalizedName(generations []model.ProviderResult) map[string][]model.Recommendation {
	groups := make(map[string][]model.Recommendation)
	for _, gen := range generations {
		if !gen.Success {
			continue
		}
		for _, rec := range gen.Recommendations {
			key := Normalize(rec.Name)
			groups[key] = append(groups[key], rec)
		}
	}
	return groups
}

func indexValidationsByKey(validations []model.CrossValidationResult) map[string][]model.ValidationEntry {
	out := make(map[string][]model.ValidationEntry)
	for _, cv := range validations {
		for _, entry := range cv.Items {
			key := Normalize(entry.Original.Name)
			out[key] = append(out[key], entry)
		}
	}
	return out
}

func buildRecommendation(key string, members []model.Recommendation, entries []model.ValidationEntry, w Weights) model.Recommendation {
	representative := members[0]
	for _, m := range members[1:] {
		if m.BaseConfidence > representative.BaseConfidence {
			representative = m
		}
	}

	baseScore := meanConfidence(members)
	agreementCount := len(members)
	agreementBonus := math.Min(float64(agreementCount-1)*w.AgreementBonusPerPeer, w.AgreementBonusCap)

	validationScore := baseScore
	var flaggedInaccurate, flaggedOutOfRange int
	if len(entries) > 0 {
		var sum float64
		for _, e := range entries {
			sum += e.ValidationScore
			if e.FlaggedInaccurate {
				flaggedInaccurate++
			}
			if e.FlaggedOutOfRange {
				flaggedOutOfRange++
			}
		}
		validationScore = sum / float64(len(entries))
	}
	flagPenalty := w.InaccurateFlagPenalty*float64(flaggedInaccurate) + w.OutOfRangeFlagPenalty*float64(flaggedOutOfRange)

	var realPlaceBonus, ratingBonus float64
	if representative.EnrichedPlace != nil {
		if representative.EnrichedPlace.IsVerifiedRealPlace {
			realPlaceBonus = w.RealPlaceBonus
		}
		if representative.EnrichedPlace.Rating != nil {
			ratingBonus = w.RatingBonusMax * (*representative.EnrichedPlace.Rating / 5.0)
		}
	}

	final := baseScore*w.BaseScoreWeight + validationScore*w.ValidationScoreWeight +
		agreementBonus + realPlaceBonus + ratingBonus - flagPenalty
	final = roundTo(clamp01(final), 3)

	return model.Recommendation{
		Name:            representative.Name,
		Description:     representative.Description,
		Category:        representative.Category,
		BaseConfidence:  final,
		Level:           model.LevelForScore(final),
		Address:         representative.Address,
		Latitude:        representative.Latitude,
		Longitude:       representative.Longitude,
		SourceProvider:  representative.SourceProvider,
		EnrichedPlace:   representative.EnrichedPlace,
		Highlights:      mergeHighlights(members),
		WhyRecommended:  firstNonEmptyWhy(members),
		AgreementCount:  agreementCount,
	}
}

func meanConfidence(members []model.Recommendation) float64 {
	var sum float64
	for _, m := range members {
		sum += m.BaseConfidence
	}
	return sum / float64(len(members))
}

func mergeHighlights(members []model.Recommendation) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range members {
		for _, h := range m.Highlights {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
			if len(out) >= 5 {
				return out
			}
		}
	}
	return out
}

func firstNonEmptyWhy(members []model.Recommendation) string {
	for _, m := range members {
		if strings.TrimSpace(m.WhyRecommended) != "" {
			return m.WhyRecommended
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
