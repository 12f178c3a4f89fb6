// Package orchestrator sequences the eight-stage recommendation pipeline
// over a single request, grounded on this codebase's phase-tracking
// pipeline pattern: a mutable per-request record, stages run in declared
// order, and every stage's timing/outcome logged uniformly regardless of
// whether it succeeded, degraded, or was skipped.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/cache"
	"github.com/guberm/PlacesRecommendation/internal/config"
	"github.com/guberm/PlacesRecommendation/internal/cost"
	"github.com/guberm/PlacesRecommendation/internal/geocode"
	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
	"github.com/guberm/PlacesRecommendation/internal/places"
)

// Orchestrator holds every stage's collaborators for the lifetime of the
// process; a fresh pipelineContext is created per request.
type Orchestrator struct {
	cfg      *config.Config
	store    cache.Store
	geocoder geocode.Provider
	places   places.Provider
	registry *llm.Registry
	costCalc *cost.Calculator
}

// New creates an Orchestrator with all dependencies.
func New(cfg *config.Config, store cache.Store, geocoder geocode.Provider, placesProvider places.Provider, registry *llm.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		geocoder: geocoder,
		places:   placesProvider,
		registry: registry,
		costCalc: cost.NewCalculator(cost.DefaultRates()),
	}
}

// Run executes the full pipeline for a single request. The only errors it
// returns are the three fatal conditions; every other failure is absorbed
// into the response's metadata.
func (o *Orchestrator) Run(ctx context.Context, req model.Request) (*model.Response, error) {
	req = req.Normalize()
	if !req.HasCoordinates() && strings.TrimSpace(req.Address) == "" {
		return nil, ErrInputInvalid
	}

	rc := NewRequestContext(o.cfg, req)
	log := zap.L().With(zap.String("request_id", rc.RequestID))
	log.Info("orchestrator: starting request")

	pc := &pipelineContext{rc: rc, req: req}
	start := time.Now()

	track := func(name string, fn func() model.PhaseResult) model.PhaseResult {
		phaseStart := time.Now()
		result := fn()
		result.Name = name
		result.Duration = time.Since(phaseStart)
		if result.Status == "" {
			result.Status = model.PhaseStatusOK
		}
		pc.phases = append(pc.phases, result)
		log.Debug("orchestrator: phase complete", zap.String("phase", name), zap.String("status", string(result.Status)), zap.Duration("duration", result.Duration))
		return result
	}

	// cancelled is checked after every stage, not just generation:
	// cancellation is its own top-level fatal condition, independent of
	// exhausted providers, and must abort the pipeline at any point, not
	// just be absorbed by whichever stage happens to be running.
	cancelled := func() bool {
		if err := ctx.Err(); err != nil {
			log.Warn("orchestrator: request cancelled", zap.Error(err))
			return true
		}
		return false
	}

	track("geocode", func() model.PhaseResult {
		runGeocode(ctx, pc, o.geocoder, log)
		status := model.PhaseStatusOK
		if !pc.geocodingAvailable {
			status = model.PhaseStatusDegraded
		}
		return model.PhaseResult{Status: status}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	track("cachecheck", func() model.PhaseResult {
		runCacheCheck(ctx, pc, o.store, o.cfg.Cache.GridPrecisionDecimalPlaces, log)
		status := model.PhaseStatusOK
		if pc.cacheHit {
			status = model.PhaseStatusSkipped
		}
		return model.PhaseResult{Status: status, Metadata: map[string]any{"hit": pc.cacheHit}}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	if pc.cacheHit {
		log.Info("orchestrator: cache hit, skipping stages 3-8")
		return pc.cachedResp, nil
	}

	location := pc.resolvedAddress
	if location == "" {
		location = req.Address
	}

	track("generation", func() model.PhaseResult {
		runParallelGeneration(ctx, pc, o.registry, location, log)
		return model.PhaseResult{Metadata: map[string]any{"providers": len(pc.generations)}}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	successful := 0
	for _, g := range pc.generations {
		if g.Success {
			successful++
		}
	}
	if successful == 0 {
		log.Warn("orchestrator: no providers produced recommendations")
		return nil, ErrExhaustedProviders
	}

	track("enrichment", func() model.PhaseResult {
		runPlacesEnrichment(ctx, pc, o.places, req.RadiusMeters, o.cfg.Places.MaxResults, log)
		status := model.PhaseStatusOK
		if !pc.googlePlacesEnriched {
			status = model.PhaseStatusDegraded
		}
		return model.PhaseResult{Status: status}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	track("crossvalidation", func() model.PhaseResult {
		runCrossValidation(ctx, pc, o.registry, location, log)
		return model.PhaseResult{Metadata: map[string]any{"pairs": len(pc.validations)}}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	track("scoring", func() model.PhaseResult {
		runConsensusScoring(pc)
		return model.PhaseResult{Metadata: map[string]any{"candidates": len(pc.scored)}}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	track("synthesis", func() model.PhaseResult {
		runSynthesis(ctx, pc, o.registry, location, log)
		return model.PhaseResult{Metadata: map[string]any{"synthesized_by": pc.synthesizedBy}}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	resp := o.buildResponse(pc, start)

	track("cachewrite", func() model.PhaseResult {
		ttl := time.Duration(o.cfg.Cache.DefaultTTLHours) * time.Hour
		runCacheWrite(ctx, pc, resp, o.store, ttl, log)
		return model.PhaseResult{}
	})
	if cancelled() {
		return nil, ErrCancelled
	}

	log.Info("orchestrator: request complete",
		zap.Int("recommendations", len(resp.Recommendations)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &resp, nil
}

func (o *Orchestrator) buildResponse(pc *pipelineContext, start time.Time) model.Response {
	var providersUsed, providersFailed []string
	candidatesEvaluated := 0
	for _, g := range pc.generations {
		if g.Success {
			providersUsed = append(providersUsed, g.ProviderName)
			candidatesEvaluated += len(g.Recommendations)
		} else {
			providersFailed = append(providersFailed, g.ProviderName)
		}
	}

	var estimatedCostUSD float64
	for _, g := range pc.generations {
		estimatedCostUSD += o.costCalc.Estimate(modelForProvider(o.cfg, g.ProviderName), estimateTokens(g.RawResponse), estimateTokens(g.RawResponse), 0, 0)
	}

	return model.Response{
		Latitude:        pc.lat,
		Longitude:       pc.lng,
		ResolvedAddress: pc.resolvedAddress,
		Category:        pc.req.PrimaryCategory(),
		Categories:      pc.req.Categories,
		Recommendations: pc.scored,
		Metadata: model.Metadata{
			ProvidersUsed:        providersUsed,
			ProvidersFailed:      providersFailed,
			GooglePlacesEnriched: pc.googlePlacesEnriched,
			CandidatesEvaluated:  candidatesEvaluated,
			TotalElapsedMs:       time.Since(start).Milliseconds(),
			SynthesizedBy:        pc.synthesizedBy,
			EstimatedCostUSD:     estimatedCostUSD,
		},
		FromCache:   false,
		GeneratedAt: time.Now().UTC(),
	}
}

// modelForProvider looks up the configured model name for cost estimation;
// falls back to the provider tag itself so an unrecognized tag still
// resolves to *some* rate-table lookup (which itself degrades to 0).
func modelForProvider(cfg *config.Config, tag string) string {
	switch tag {
	case "anthropic":
		return cfg.Providers.Anthropic.Model
	case "perplexity":
		return cfg.Providers.Perplexity.Model
	case "streaming":
		return cfg.Providers.Streaming.Model
	default:
		return tag
	}
}

// estimateTokens approximates token count from raw text length, used only
// for the informational estimatedCostUSD metadata field — providers don't
// expose exact usage through the Provider interface's minimal surface.
func estimateTokens(s string) int {
	return len(s) / 4
}
