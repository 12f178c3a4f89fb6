package llm

import (
	"context"
	"time"

	sdkperplexity "github.com/guberm/PlacesRecommendation/pkg/perplexity"
	"github.com/guberm/PlacesRecommendation/internal/resilience"
)

// PerplexityAdapter implements Provider against the Perplexity chat
// completions API.
type PerplexityAdapter struct {
	client        sdkperplexity.Client
	defaultModel  string
	timeout       time.Duration
	breaker       *resilience.CircuitBreaker
	retry         resilience.RetryConfig
	serverEnabled bool
}

// PerplexityOption configures a PerplexityAdapter.
type PerplexityOption func(*PerplexityAdapter)

// WithPerplexityTimeout overrides the per-call timeout (default 30s).
func WithPerplexityTimeout(d time.Duration) PerplexityOption {
	return func(a *PerplexityAdapter) { a.timeout = d }
}

// WithPerplexityRetryConfig overrides the default retry behavior.
func WithPerplexityRetryConfig(cfg resilience.RetryConfig) PerplexityOption {
	return func(a *PerplexityAdapter) { a.retry = cfg }
}

// WithPerplexityCircuitConfig overrides the default circuit breaker behavior.
func WithPerplexityCircuitConfig(cfg resilience.CircuitBreakerConfig) PerplexityOption {
	return func(a *PerplexityAdapter) { a.breaker = resilience.NewCircuitBreaker(cfg) }
}

// NewPerplexityAdapter creates a Provider backed by client. A per-request
// override in Credentials makes IsAvailable report true; Complete always
// sends through client and takes only Model from the override, not its
// APIKey or Endpoint.
func NewPerplexityAdapter(client sdkperplexity.Client, defaultModel string, serverEnabled bool, opts ...PerplexityOption) *PerplexityAdapter {
	a := &PerplexityAdapter{
		client:        client,
		defaultModel:  defaultModel,
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

func (a *PerplexityAdapter) Name() string { return "perplexity" }

func (a *PerplexityAdapter) IsAvailable(creds Credentials) bool {
	if creds.HasOverride {
		return true
	}
	if !a.serverEnabled {
		return false
	}
	return a.breaker.State() != resilience.CircuitOpen
}

func (a *PerplexityAdapter) Complete(ctx context.Context, prompt string, creds Credentials) (string, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	model := a.defaultModel
	if creds.HasOverride && creds.Model != "" {
		model = creds.Model
	}

	start := time.Now()
	resp, err := resilience.ExecuteVal(callCtx, a.breaker, func(ctx context.Context) (*sdkperplexity.ChatCompletionResponse, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*sdkperplexity.ChatCompletionResponse, error) {
			return a.client.ChatCompletion(ctx, sdkperplexity.ChatCompletionRequest{
				Model:    model,
				Messages: []sdkperplexity.Message{{Role: "user", Content: prompt}},
			})
		})
	})
	elapsed := time.Since(start)
	if err != nil {
		return "", elapsed, err
	}

	if len(resp.Choices) == 0 {
		return "", elapsed, nil
	}
	return resp.Choices[0].Message.Content, elapsed, nil
}
