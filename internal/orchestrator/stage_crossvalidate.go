package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/consensus"
	"github.com/guberm/PlacesRecommendation/internal/llm"
)

// runCrossValidation delegates the N×(N-1) fan-out to consensus.RunCrossValidation,
// skipping entirely when fewer than two providers succeeded in stage 3.
func runCrossValidation(ctx context.Context, pc *pipelineContext, registry *llm.Registry, location string, log *zap.Logger) {
	successful := 0
	for _, g := range pc.generations {
		if g.Success {
			successful++
		}
	}
	if successful < 2 {
		log.Debug("crossvalidation: skipped, fewer than two successful providers")
		return
	}

	pc.validations = consensus.RunCrossValidation(ctx, registry.Available(pc.rc.Credentials), pc.rc.Credentials, pc.generations, location)
}
