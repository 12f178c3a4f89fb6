package orchestrator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/cache"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// runCacheCheck computes the canonical grid key and, unless the caller
// requested forceRefresh, performs a single read. A hit short-circuits
// stages 3-8 entirely.
func runCacheCheck(ctx context.Context, pc *pipelineContext, store cache.Store, gridPrecision int, log *zap.Logger) {
	pc.cacheKey = cache.BuildKey(pc.req, pc.lat, pc.lng, pc.geocodingAvailable, gridPrecision)

	if pc.req.ForceRefresh || store == nil {
		return
	}

	raw, found, err := store.Get(ctx, pc.cacheKey)
	if err != nil {
		log.Warn("cachecheck: read failed, treating as miss", zap.String("key", pc.cacheKey), zap.Error(err))
		return
	}
	if !found {
		log.Debug("cachecheck: miss", zap.String("key", pc.cacheKey))
		return
	}

	var resp model.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Warn("cachecheck: cached value unparseable, treating as miss", zap.String("key", pc.cacheKey), zap.Error(err))
		return
	}

	resp.FromCache = true
	pc.cacheHit = true
	pc.cachedResp = &resp
}
