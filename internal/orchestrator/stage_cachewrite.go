package orchestrator

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/cache"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// cachePurgeProbability is the per-write chance of also triggering a purge
// of expired entries from the same session, keeping the store free of a
// dedicated background sweeper goroutine.
const cachePurgeProbability = 1.0 / 50.0

// runCacheWrite serializes resp and persists it under pc.cacheKey with the
// configured TTL. The write is awaited, not fire-and-forget, since the
// store session is tied to this request. Write failure is logged and
// swallowed — it must never fail the response that's already been built.
func runCacheWrite(ctx context.Context, pc *pipelineContext, resp model.Response, store cache.Store, ttl time.Duration, log *zap.Logger) {
	if store == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Warn("cachewrite: marshal failed", zap.Error(err))
		return
	}

	if err := store.Set(ctx, pc.cacheKey, data, ttl); err != nil {
		log.Warn("cachewrite: store failed", zap.String("key", pc.cacheKey), zap.Error(err))
		return
	}

	if rand.Float64() < cachePurgeProbability {
		go func() {
			n, purgeErr := store.PurgeExpired(context.Background())
			if purgeErr != nil {
				log.Warn("cachewrite: purge failed", zap.Error(purgeErr))
				return
			}
			if n > 0 {
				log.Debug("cachewrite: purged expired entries", zap.Int("count", n))
			}
		}()
	}
}
