package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/cache"
	"github.com/guberm/PlacesRecommendation/internal/geocode"
	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
	"github.com/guberm/PlacesRecommendation/internal/orchestrator"
	"github.com/guberm/PlacesRecommendation/internal/places"
	"github.com/guberm/PlacesRecommendation/internal/resilience"
	anthropicpkg "github.com/guberm/PlacesRecommendation/pkg/anthropic"
	"github.com/guberm/PlacesRecommendation/pkg/perplexity"
)

var (
	recLat          float64
	recLng          float64
	recAddress      string
	recCategories   []string
	recMaxResults   int
	recRadiusMeters int
	recForceRefresh bool
)

// recommendCmd is a stand-in caller for the out-of-scope HTTP surface: it
// drives the same orchestrator an eventual HTTP handler would call, for a
// single request, and prints the Response as JSON.
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run the consensus pipeline for a single location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := initCacheStore()
		if err != nil {
			return err
		}
		defer store.Close()

		retryCfg, circuitCfg := resilienceConfigs()
		registry := buildRegistry(retryCfg, circuitCfg)

		geocoder := buildGeocoder(retryCfg, circuitCfg)
		placesProvider := buildPlaces(retryCfg, circuitCfg)

		o := orchestrator.New(cfg, store, geocoder, placesProvider, registry)

		req := model.Request{
			Address:      recAddress,
			MaxResults:   recMaxResults,
			RadiusMeters: recRadiusMeters,
			ForceRefresh: recForceRefresh,
		}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			req.Latitude = &recLat
			req.Longitude = &recLng
		}
		for _, c := range recCategories {
			req.Categories = append(req.Categories, model.Category(strings.TrimSpace(c)))
		}

		resp, err := o.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "run pipeline")
		}

		zap.L().Info("recommendation complete",
			zap.Int("recommendations", len(resp.Recommendations)),
			zap.Bool("from_cache", resp.FromCache),
			zap.Int64("elapsed_ms", resp.Metadata.TotalElapsedMs),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	recommendCmd.Flags().Float64Var(&recLat, "lat", 0, "latitude")
	recommendCmd.Flags().Float64Var(&recLng, "lng", 0, "longitude")
	recommendCmd.Flags().StringVar(&recAddress, "address", "", "free-text address (used when --lat/--lng are omitted)")
	recommendCmd.Flags().StringSliceVar(&recCategories, "category", []string{string(model.CategoryAll)}, "one or more place categories")
	recommendCmd.Flags().IntVar(&recMaxResults, "max-results", model.DefaultMaxResults, "maximum recommendations to return")
	recommendCmd.Flags().IntVar(&recRadiusMeters, "radius", model.DefaultRadiusMeters, "enrichment search radius in meters")
	recommendCmd.Flags().BoolVar(&recForceRefresh, "force-refresh", false, "bypass the response cache")
	rootCmd.AddCommand(recommendCmd)
}

func initCacheStore() (cache.Store, error) {
	dir := cfg.Cache.Dir
	if dir == "" {
		dir = "./data/cache"
	}
	store, err := cache.NewBadgerStore(dir)
	if err != nil {
		return nil, eris.Wrap(err, "open cache store")
	}
	if cfg.Cache.PurgeOnStartup {
		if n, purgeErr := store.PurgeExpired(context.Background()); purgeErr != nil {
			zap.L().Warn("startup purge failed", zap.Error(purgeErr))
		} else if n > 0 {
			zap.L().Info("startup purge removed expired entries", zap.Int("count", n))
		}
	}
	return store, nil
}

// resilienceConfigs builds the shared retry/circuit-breaker settings every
// outbound adapter (LLM providers, geocoder, places) is configured with, so
// an operator tunes provider patience once instead of per-adapter.
func resilienceConfigs() (resilience.RetryConfig, resilience.CircuitBreakerConfig) {
	retryCfg := resilience.FromRetryConfig(
		cfg.Resilience.RetryMaxAttempts,
		cfg.Resilience.RetryInitialBackoffMs,
		cfg.Resilience.RetryMaxBackoffMs,
		cfg.Resilience.RetryMultiplier,
		cfg.Resilience.RetryJitterFraction,
	)
	circuitCfg := resilience.FromCircuitConfig(
		cfg.Resilience.CircuitFailureThreshold,
		cfg.Resilience.CircuitResetTimeoutSecs,
	)
	return retryCfg, circuitCfg
}

func buildGeocoder(retryCfg resilience.RetryConfig, circuitCfg resilience.CircuitBreakerConfig) geocode.Provider {
	if cfg.Geocode.APIKey == "" {
		return nil
	}
	opts := []geocode.GoogleOption{
		geocode.WithRetryConfig(retryCfg),
		geocode.WithCircuitConfig(circuitCfg),
	}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.RateLimitQPS > 0 {
		opts = append(opts, geocode.WithRateLimit(float64(cfg.Geocode.RateLimitQPS)))
	}
	return geocode.NewGoogleProvider(cfg.Geocode.APIKey, opts...)
}

func buildPlaces(retryCfg resilience.RetryConfig, circuitCfg resilience.CircuitBreakerConfig) places.Provider {
	if cfg.Places.APIKey == "" {
		return nil
	}
	opts := []places.GoogleOption{
		places.WithRetryConfig(retryCfg),
		places.WithCircuitConfig(circuitCfg),
	}
	if cfg.Places.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	if cfg.Places.RateLimitQPS > 0 {
		opts = append(opts, places.WithRateLimit(float64(cfg.Places.RateLimitQPS)))
	}
	return places.NewGoogleProvider(cfg.Places.APIKey, opts...)
}

func buildRegistry(retryCfg resilience.RetryConfig, circuitCfg resilience.CircuitBreakerConfig) *llm.Registry {
	registry := llm.NewRegistry()

	anthropicClient := anthropicpkg.NewClient(cfg.Providers.Anthropic.APIKey)
	registry.Register(llm.NewAnthropicAdapter(
		anthropicClient,
		cfg.Providers.Anthropic.Model,
		cfg.Providers.Anthropic.Enabled && cfg.Providers.Anthropic.APIKey != "",
		llm.WithAnthropicMaxTokens(int64(cfg.Providers.Anthropic.MaxTokens)),
		llm.WithAnthropicTimeout(time.Duration(cfg.Providers.Anthropic.TimeoutSeconds)*time.Second),
		llm.WithAnthropicRetryConfig(retryCfg),
		llm.WithAnthropicCircuitConfig(circuitCfg),
	))

	perplexityClient := perplexity.NewClient(cfg.Providers.Perplexity.APIKey, perplexity.WithBaseURL(cfg.Providers.Perplexity.Endpoint))
	registry.Register(llm.NewPerplexityAdapter(
		perplexityClient,
		cfg.Providers.Perplexity.Model,
		cfg.Providers.Perplexity.Enabled && cfg.Providers.Perplexity.APIKey != "",
		llm.WithPerplexityTimeout(time.Duration(cfg.Providers.Perplexity.TimeoutSeconds)*time.Second),
		llm.WithPerplexityRetryConfig(retryCfg),
		llm.WithPerplexityCircuitConfig(circuitCfg),
	))

	if cfg.Providers.Streaming.Endpoint != "" {
		registry.Register(llm.NewStreamingAdapter(
			"streaming",
			cfg.Providers.Streaming.Endpoint,
			cfg.Providers.Streaming.APIKey,
			cfg.Providers.Streaming.Model,
			cfg.Providers.Streaming.Enabled && cfg.Providers.Streaming.APIKey != "",
			llm.WithStreamingTimeout(time.Duration(cfg.Providers.Streaming.TimeoutSeconds)*time.Second),
			llm.WithStreamingRetryConfig(retryCfg),
			llm.WithStreamingCircuitConfig(circuitCfg),
		))
	}

	return registry
}
