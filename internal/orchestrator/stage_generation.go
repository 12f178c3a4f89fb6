package orchestrator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// runParallelGeneration fans out the same generate prompt to every provider
// whose IsAvailable returns true in the request's credential scope, joins
// on all of them, and records one ProviderResult per provider regardless
// of outcome — an individual provider failure never aborts the pipeline.
func runParallelGeneration(ctx context.Context, pc *pipelineContext, registry *llm.Registry, location string, log *zap.Logger) {
	available := registry.Available(pc.rc.Credentials)
	if len(available) == 0 {
		return
	}

	prompt := llm.BuildGeneratePrompt(location, pc.req.Categories, pc.req.RadiusMeters)
	results := make([]model.ProviderResult, len(available))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range available {
		i, p := i, p
		g.Go(func() error {
			creds := pc.rc.Credentials[p.Name()]
			raw, elapsed, err := p.Complete(gctx, prompt, creds)
			if err != nil {
				log.Warn("generation: provider call failed", zap.String("provider", p.Name()), zap.Error(err))
				results[i] = model.ProviderResult{ProviderName: p.Name(), Success: false, ErrorMessage: err.Error(), Elapsed: elapsed}
				return nil
			}

			items, parseErr := llm.ParseGenerateResponse(raw)
			if parseErr != nil {
				log.Warn("generation: provider response unparseable", zap.String("provider", p.Name()), zap.Error(parseErr))
				results[i] = model.ProviderResult{ProviderName: p.Name(), Success: false, ErrorMessage: parseErr.Error(), RawResponse: raw, Elapsed: elapsed}
				return nil
			}

			recs := make([]model.Recommendation, 0, len(items))
			for _, it := range items {
				recs = append(recs, generatedItemToRecommendation(it, p.Name(), pc.req.PrimaryCategory()))
			}
			results[i] = model.ProviderResult{
				ProviderName:    p.Name(),
				Success:         len(recs) > 0,
				Recommendations: recs,
				RawResponse:     raw,
				Elapsed:         elapsed,
			}
			return nil
		})
	}
	_ = g.Wait() // per-provider failures are captured above; the join itself never errors.

	pc.generations = results
}

func generatedItemToRecommendation(it llm.GeneratedItem, providerName string, category model.Category) model.Recommendation {
	score := it.ConfidenceScore
	return model.Recommendation{
		Name:           it.Name,
		Description:    it.Description,
		Category:       category,
		BaseConfidence: score,
		Level:          model.LevelForScore(score),
		Address:        it.Address,
		Latitude:       it.Latitude,
		Longitude:      it.Longitude,
		SourceProvider: providerName,
		Highlights:     it.Highlights,
		WhyRecommended: it.WhyRecommended,
		AgreementCount: 1,
	}
}
