// Package cost estimates USD spend for LLM provider calls, attached to the
// pipeline's response metadata as informational accounting.
package cost

// Rates holds per-model token pricing, keyed by model name, shared across
// every provider adapter (the wire shape differs per provider; the pricing
// model does not).
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for LLM API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Estimate returns the USD cost of one completion call against model,
// given input/output tokens plus any Anthropic-style prompt-cache
// write/read tokens (zero for providers that don't cache). Unknown models
// return 0 rather than erroring, since cost accounting is informational.
func (c *Calculator) Estimate(model string, inputTokens, outputTokens, cacheWriteTokens, cacheReadTokens int) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}

	inCost := (float64(inputTokens) / 1e6) * rate.Input
	outCost := (float64(outputTokens) / 1e6) * rate.Output
	cwCost := (float64(cacheWriteTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// DefaultRates returns the default pricing table for the providers this
// module ships adapters for.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonar-pro": {
				Input: 3.00, Output: 15.00,
			},
		},
	}
}
