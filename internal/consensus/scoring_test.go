package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guberm/PlacesRecommendation/internal/consensus"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

func TestScoreFusesAgreeingCandidates(t *testing.T) {
	generations := []model.ProviderResult{
		{ProviderName: "a", Success: true, Recommendations: []model.Recommendation{
			{Name: "Joe's Diner", BaseConfidence: 0.8},
		}},
		{ProviderName: "b", Success: true, Recommendations: []model.Recommendation{
			{Name: "joes diner", BaseConfidence: 0.8},
		}},
		{ProviderName: "c", Success: true, Recommendations: []model.Recommendation{
			{Name: "Unique Place", BaseConfidence: 0.9},
		}},
	}

	scored := consensus.Score(generations, nil, consensus.DefaultWeights(), 10)
	require.Len(t, scored, 2)

	var joe model.Recommendation
	for _, r := range scored {
		if consensus.Normalize(r.Name) == "joes diner" {
			joe = r
		}
	}
	require.NotEmpty(t, joe.Name)
	assert.Equal(t, 2, joe.AgreementCount)
	assert.GreaterOrEqual(t, joe.BaseConfidence, 0.8*0.4+0.8*0.35+0.05)
}

func TestScoreTrimsToMaxResults(t *testing.T) {
	var gens []model.ProviderResult
	for i := 0; i < 5; i++ {
		gens = append(gens, model.ProviderResult{
			ProviderName: "a", Success: true,
			Recommendations: []model.Recommendation{{Name: string(rune('A' + i)), BaseConfidence: 0.5}},
		})
	}
	scored := consensus.Score(gens, nil, consensus.DefaultWeights(), 2)
	assert.Len(t, scored, 2)
}

func TestScoreFlagPenaltyReducesScore(t *testing.T) {
	generations := []model.ProviderResult{
		{ProviderName: "a", Success: true, Recommendations: []model.Recommendation{
			{Name: "Joe's Diner", BaseConfidence: 0.8},
		}},
	}
	withoutFlag := consensus.Score(generations, nil, consensus.DefaultWeights(), 10)

	validations := []model.CrossValidationResult{{
		ValidatedBy:    "b",
		OriginalSource: "a",
		Items: []model.ValidationEntry{{
			Original:          model.Recommendation{Name: "Joe's Diner"},
			ValidationScore:   0.8,
			FlaggedInaccurate: true,
		}},
	}}
	withFlag := consensus.Score(generations, validations, consensus.DefaultWeights(), 10)

	require.Len(t, withoutFlag, 1)
	require.Len(t, withFlag, 1)
	assert.Less(t, withFlag[0].BaseConfidence, withoutFlag[0].BaseConfidence)
}

func TestScoreNoDuplicateNormalizedNames(t *testing.T) {
	generations := []model.ProviderResult{
		{ProviderName: "a", Success: true, Recommendations: []model.Recommendation{{Name: "A Place", BaseConfidence: 0.5}}},
		{ProviderName: "b", Success: true, Recommendations: []model.Recommendation{{Name: "a place", BaseConfidence: 0.6}}},
	}
	scored := consensus.Score(generations, nil, consensus.DefaultWeights(), 10)
	seen := map[string]bool{}
	for _, r := range scored {
		key := consensus.Normalize(r.Name)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestScoreIgnoresFailedProviderResults(t *testing.T) {
	generations := []model.ProviderResult{
		{ProviderName: "a", Success: false, Recommendations: []model.Recommendation{{Name: "Ghost"}}},
	}
	scored := consensus.Score(generations, nil, consensus.DefaultWeights(), 10)
	assert.Empty(t, scored)
}

func TestScoreMonotonicWithAgreement(t *testing.T) {
	one := []model.ProviderResult{
		{ProviderName: "a", Success: true, Recommendations: []model.Recommendation{{Name: "X", BaseConfidence: 0.6}}},
	}
	two := []model.ProviderResult{
		{ProviderName: "a", Success: true, Recommendations: []model.Recommendation{{Name: "X", BaseConfidence: 0.6}}},
		{ProviderName: "b", Success: true, Recommendations: []model.Recommendation{{Name: "X", BaseConfidence: 0.6}}},
	}
	scoredOne := consensus.Score(one, nil, consensus.DefaultWeights(), 10)
	scoredTwo := consensus.Score(two, nil, consensus.DefaultWeights(), 10)
	require.Len(t, scoredOne, 1)
	require.Len(t, scoredTwo, 1)
	assert.Greater(t, scoredTwo[0].BaseConfidence, scoredOne[0].BaseConfidence)
}
