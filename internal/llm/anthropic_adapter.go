package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/guberm/PlacesRecommendation/internal/resilience"
	sdkanthropic "github.com/guberm/PlacesRecommendation/pkg/anthropic"
)

const systemPreamble = "You are a place-recommendation assistant. Always respond with strict JSON only, matching the requested shape exactly, with no prose before or after."

// AnthropicAdapter implements Provider against the Anthropic Messages API,
// reusing the SDK-wrapped Client and its prompt-cache system block helper
// so the fixed instruction preamble is cached across calls.
type AnthropicAdapter struct {
	client        sdkanthropic.Client
	defaultModel  string
	maxTokens     int64
	timeout       time.Duration
	breaker       *resilience.CircuitBreaker
	retry         resilience.RetryConfig
	serverEnabled bool
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*AnthropicAdapter)

// WithAnthropicTimeout overrides the per-call timeout (default 30s).
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(a *AnthropicAdapter) { a.timeout = d }
}

// WithAnthropicMaxTokens overrides the max output tokens per call.
func WithAnthropicMaxTokens(n int64) AnthropicOption {
	return func(a *AnthropicAdapter) { a.maxTokens = n }
}

// WithAnthropicRetryConfig overrides the default retry behavior.
func WithAnthropicRetryConfig(cfg resilience.RetryConfig) AnthropicOption {
	return func(a *AnthropicAdapter) { a.retry = cfg }
}

// WithAnthropicCircuitConfig overrides the default circuit breaker behavior.
func WithAnthropicCircuitConfig(cfg resilience.CircuitBreakerConfig) AnthropicOption {
	return func(a *AnthropicAdapter) { a.breaker = resilience.NewCircuitBreaker(cfg) }
}

// NewAnthropicAdapter creates a Provider backed by client. serverEnabled
// reflects process configuration (a configured server-side API key); a
// per-request override in Credentials can activate the adapter even when
// serverEnabled is false. Complete always sends through client and takes
// only Model from the override; its APIKey and Endpoint are not used.
func NewAnthropicAdapter(client sdkanthropic.Client, defaultModel string, serverEnabled bool, opts ...AnthropicOption) *AnthropicAdapter {
	a := &AnthropicAdapter{
		client:        client,
		defaultModel:  defaultModel,
		maxTokens:     4096,
		timeout:       30 * time.Second,
		breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:         resilience.DefaultRetryConfig(),
		serverEnabled: serverEnabled,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) IsAvailable(creds Credentials) bool {
	if creds.HasOverride {
		return true
	}
	if !a.serverEnabled {
		return false
	}
	return a.breaker.State() != resilience.CircuitOpen
}

func (a *AnthropicAdapter) Complete(ctx context.Context, prompt string, creds Credentials) (string, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	model := a.defaultModel
	if creds.HasOverride && creds.Model != "" {
		model = creds.Model
	}

	start := time.Now()
	resp, err := resilience.ExecuteVal(callCtx, a.breaker, func(ctx context.Context) (*sdkanthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*sdkanthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, sdkanthropic.MessageRequest{
				Model:     model,
				MaxTokens: a.maxTokens,
				System:    sdkanthropic.BuildCachedSystemBlocks(systemPreamble),
				Messages:  []sdkanthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	})
	elapsed := time.Since(start)
	if err != nil {
		return "", elapsed, err
	}

	resp.Usage.LogCost(model, "recommendation")

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		zap.L().Warn("anthropic: empty text content in response", zap.String("model", model))
	}
	return text, elapsed, nil
}
