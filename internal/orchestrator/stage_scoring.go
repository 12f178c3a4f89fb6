package orchestrator

import "github.com/guberm/PlacesRecommendation/internal/consensus"

// runConsensusScoring is the pure fold over stage 3's generations and stage
// 5's validations. It never fails and never touches the network.
func runConsensusScoring(pc *pipelineContext) {
	pc.scored = consensus.Score(pc.generations, pc.validations, consensus.DefaultWeights(), pc.req.MaxResults)
}
