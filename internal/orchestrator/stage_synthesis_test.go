package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

func TestRunSynthesisPreservesEmptyFields(t *testing.T) {
	registry := llm.NewRegistry()
	fast := &fakeLLM{name: "fast", available: true, elapsed: time.Millisecond,
		response: `{"recommendations":[{"name":"Joe's Diner","description":"","highlights":[],"whyRecommended":"Great vibe"}]}`}
	registry.Register(fast)

	pc := &pipelineContext{
		rc:  RequestContext{Credentials: map[string]llm.Credentials{"fast": {}}},
		req: model.Request{},
		generations: []model.ProviderResult{
			{ProviderName: "fast", Success: true, Elapsed: time.Millisecond},
		},
		scored: []model.Recommendation{
			{Name: "Joe's Diner", Description: "Original description", Highlights: []string{"cozy"}, WhyRecommended: "Old reason"},
		},
	}

	runSynthesis(context.Background(), pc, registry, "downtown", zap.NewNop())

	require.Len(t, pc.scored, 1)
	assert.Equal(t, "Original description", pc.scored[0].Description, "empty synthesized description must not blank the original")
	assert.Equal(t, []string{"cozy"}, pc.scored[0].Highlights, "empty synthesized highlights must not blank the original")
	assert.Equal(t, "Great vibe", pc.scored[0].WhyRecommended, "non-empty synthesized field must overwrite")
	assert.Equal(t, "Consensus", pc.scored[0].SourceProvider)
	assert.Equal(t, "fast", pc.synthesizedBy)
}

func TestRunSynthesisFailureLeavesListUntouched(t *testing.T) {
	registry := llm.NewRegistry()
	failing := &fakeLLM{name: "broken", available: true, elapsed: time.Millisecond, err: assert.AnError}
	registry.Register(failing)

	pc := &pipelineContext{
		rc:  RequestContext{Credentials: map[string]llm.Credentials{}},
		req: model.Request{},
		generations: []model.ProviderResult{
			{ProviderName: "broken", Success: true, Elapsed: time.Millisecond},
		},
		scored: []model.Recommendation{
			{Name: "Untouched Place", Description: "stays as-is"},
		},
	}

	runSynthesis(context.Background(), pc, registry, "downtown", zap.NewNop())

	require.Len(t, pc.scored, 1)
	assert.Equal(t, "stays as-is", pc.scored[0].Description)
	assert.Equal(t, "Consensus", pc.synthesizedBy)
}

func TestRunSynthesisNoCandidatesSetsSynthesizedBy(t *testing.T) {
	registry := llm.NewRegistry()
	pc := &pipelineContext{rc: RequestContext{Credentials: map[string]llm.Credentials{}}}

	runSynthesis(context.Background(), pc, registry, "downtown", zap.NewNop())
	assert.Equal(t, "Consensus", pc.synthesizedBy)
}
