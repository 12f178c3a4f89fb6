package consensus

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// CrossValidationConcurrency caps how many (validator, source) pairs run at
// once, bounding fan-out for requests with many available providers.
const CrossValidationConcurrency = 8

// RunCrossValidation builds every (validator, source) pair where validator
// != source and source produced at least one recommendation, and runs them
// concurrently. A failing pair yields an empty CrossValidationResult rather
// than aborting the round — cross-validation is entirely non-fatal.
func RunCrossValidation(
	ctx context.Context,
	providers []llm.Provider,
	creds map[string]llm.Credentials,
	generations []model.ProviderResult,
	location string,
) []model.CrossValidationResult {
	if len(providers) < 2 {
		return nil
	}

	type pair struct {
		validator llm.Provider
		source    model.ProviderResult
	}

	var pairs []pair
	for _, validator := range providers {
		for _, source := range generations {
			if !source.Success || len(source.Recommendations) == 0 {
				continue
			}
			if source.ProviderName == validator.Name() {
				continue
			}
			pairs = append(pairs, pair{validator: validator, source: source})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	results := make([]model.CrossValidationResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(CrossValidationConcurrency)

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			results[i] = runOnePair(gctx, p.validator, creds[p.validator.Name()], p.source, location)
			return nil
		})
	}
	_ = g.Wait() // runOnePair never returns an error; failures are captured per-pair.

	return results
}

func runOnePair(ctx context.Context, validator llm.Provider, creds llm.Credentials, source model.ProviderResult, location string) model.CrossValidationResult {
	result := model.CrossValidationResult{
		ValidatedBy:    validator.Name(),
		OriginalSource: source.ProviderName,
	}

	prompt := llm.BuildValidatePrompt(location, source.Recommendations)
	raw, _, err := validator.Complete(ctx, prompt, creds)
	if err != nil {
		zap.L().Warn("cross-validation call failed",
			zap.String("validator", validator.Name()),
			zap.String("source", source.ProviderName),
			zap.Error(err))
		return result
	}

	parsed, err := llm.ParseValidateResponse(raw)
	if err != nil {
		zap.L().Warn("cross-validation response unparseable",
			zap.String("validator", validator.Name()),
			zap.String("source", source.ProviderName),
			zap.Error(err))
		return result
	}

	byName := make(map[string]model.Recommendation, len(source.Recommendations))
	for _, rec := range source.Recommendations {
		byName[Normalize(rec.Name)] = rec
	}

	for _, v := range parsed {
		original, ok := byName[Normalize(v.Name)]
		if !ok {
			continue // defensive: validator referenced a name it wasn't shown.
		}
		result.Items = append(result.Items, model.ValidationEntry{
			Original:          original,
			ValidationScore:   v.ValidationScore,
			FlaggedInaccurate: v.FlaggedAsInaccurate,
			FlaggedOutOfRange: v.FlaggedAsOutOfRange,
			Comment:           v.Comment,
		})
	}
	return result
}
