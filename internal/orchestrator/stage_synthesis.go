package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// consensusSourceLabel replaces each candidate's per-provider SourceProvider
// once it has passed through consensus fusion, and is the fallback for
// Metadata.SynthesizedBy when no synthesis pass could run.
const consensusSourceLabel = "Consensus"

// runSynthesis selects the fastest successful, still-available provider
// from stage 3 and asks it to polish the ranked list's copy. It must never
// reorder, add, or remove candidates: only description/highlights/
// whyRecommended may change, and only when the synthesized value is
// non-empty (this implementation resolves the spec's synthesis-blanking
// open question toward preservation).
func runSynthesis(ctx context.Context, pc *pipelineContext, registry *llm.Registry, location string, log *zap.Logger) {
	for i := range pc.scored {
		pc.scored[i].SourceProvider = consensusSourceLabel
	}

	if len(pc.scored) == 0 {
		pc.synthesizedBy = consensusSourceLabel
		return
	}

	synth := fastestAvailableProvider(pc, registry)
	if synth == nil {
		pc.synthesizedBy = consensusSourceLabel
		return
	}

	prompt := llm.BuildSynthesizePrompt(pc.scored)
	raw, _, err := synth.Complete(ctx, prompt, pc.rc.Credentials[synth.Name()])
	if err != nil {
		log.Warn("synthesis: provider call failed, leaving ranked list untouched", zap.String("provider", synth.Name()), zap.Error(err))
		pc.synthesizedBy = consensusSourceLabel
		return
	}

	parsed, err := llm.ParseSynthesizeResponse(raw)
	if err != nil {
		log.Warn("synthesis: response unparseable, leaving ranked list untouched", zap.String("provider", synth.Name()), zap.Error(err))
		pc.synthesizedBy = consensusSourceLabel
		return
	}

	byName := make(map[string]llm.ParsedSynthesis, len(parsed))
	for _, p := range parsed {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}

	for i := range pc.scored {
		match, ok := byName[strings.ToLower(strings.TrimSpace(pc.scored[i].Name))]
		if !ok {
			continue
		}
		applyNonEmptySynthesis(&pc.scored[i], match)
	}
	pc.synthesizedBy = synth.Name()
}

func applyNonEmptySynthesis(rec *model.Recommendation, s llm.ParsedSynthesis) {
	if strings.TrimSpace(s.Description) != "" {
		rec.Description = s.Description
	}
	if strings.TrimSpace(s.WhyRecommended) != "" {
		rec.WhyRecommended = s.WhyRecommended
	}
	if len(s.Highlights) > 0 {
		rec.Highlights = s.Highlights
	}
}

// fastestAvailableProvider picks, among stage 3's successful ProviderResults,
// the one with the smallest Elapsed whose adapter is still registered and
// available. Ties break by first occurrence in pc.generations.
func fastestAvailableProvider(pc *pipelineContext, registry *llm.Registry) llm.Provider {
	var best llm.Provider
	bestElapsed := int64(-1)

	for _, g := range pc.generations {
		if !g.Success {
			continue
		}
		p, err := registry.Get(g.ProviderName)
		if err != nil || !p.IsAvailable(pc.rc.Credentials[g.ProviderName]) {
			continue
		}
		e := g.Elapsed.Nanoseconds()
		if bestElapsed == -1 || e < bestElapsed {
			best = p
			bestElapsed = e
		}
	}
	return best
}
