package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guberm/PlacesRecommendation/internal/consensus"
)

func TestNormalizeCollapsesVariants(t *testing.T) {
	assert.Equal(t, consensus.Normalize("Joe's Diner"), consensus.Normalize("joes diner"))
	assert.Equal(t, consensus.Normalize("Sun-Set Grill"), consensus.Normalize("Sun Set Grill"))
	assert.Equal(t, "the museum", consensus.Normalize("  The   Museum  "))
}

func TestWordOverlapExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, consensus.WordOverlap("Joe's Diner", "Joe's Diner"))
}

func TestWordOverlapPartialMatch(t *testing.T) {
	got := consensus.WordOverlap("Joe's Diner Downtown", "Joe's Diner")
	assert.InDelta(t, 2.0/3.0, got, 1e-9)
}

func TestWordOverlapNoMatch(t *testing.T) {
	assert.Equal(t, 0.0, consensus.WordOverlap("Alpha", "Beta"))
}

func TestWordOverlapEmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, consensus.WordOverlap("", "anything"))
}
