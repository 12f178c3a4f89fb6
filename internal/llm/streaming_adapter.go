package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/guberm/PlacesRecommendation/internal/resilience"
)

// StreamingAdapter implements Provider against an OpenAI-compatible
// streaming chat completions endpoint, reading server-sent events line by
// line. No dependency in this codebase's family ships a dedicated SSE
// client, so this reads the wire format directly with bufio.Scanner —
// see DESIGN.md for why that stdlib choice was kept instead of adopting a
// third-party SSE library.
type StreamingAdapter struct {
	name          string
	baseURL       string
	apiKey        string
	defaultModel  string
	httpClient    *http.Client
	timeout       time.Duration
	breaker       *resilience.CircuitBreaker
	retry         resilience.RetryConfig
	serverEnabled bool
}

// StreamingOption configures a StreamingAdapter.
type StreamingOption func(*StreamingAdapter)

// WithStreamingHTTPClient overrides the default http.Client.
func WithStreamingHTTPClient(hc *http.Client) StreamingOption {
	return func(a *StreamingAdapter) { a.httpClient = hc }
}

// WithStreamingTimeout overrides the per-call timeout (default 120s,
// generous because streaming aggregators read the full response body).
func WithStreamingTimeout(d time.Duration) StreamingOption {
	return func(a *StreamingAdapter) { a.timeout = d }
}

// WithStreamingRetryConfig overrides the default retry behavior.
func WithStreamingRetryConfig(cfg resilience.RetryConfig) StreamingOption {
	return func(a *StreamingAdapter) { a.retry = cfg }
}

// WithStreamingCircuitConfig overrides the default circuit breaker behavior.
func WithStreamingCircuitConfig(cfg resilience.CircuitBreakerConfig) StreamingOption {
	return func(a *StreamingAdapter) { a.breaker = resilience.NewCircuitBreaker(cfg) }
}

// NewStreamingAdapter creates a Provider that streams chat completions from
// baseURL+"/chat/completions" and aggregates delta content client-side.
func NewStreamingAdapter(name, baseURL, apiKey, defaultModel string, serverEnabled bool, opts ...StreamingOption) *StreamingAdapter {
	a := &StreamingAdapter{
		name:          name,
		baseURL:       baseURL,
		apiKey:        apiKey,
		defaultModel:  defaultModel,
		httpClient:    &http.Client{Timeout: 120 * time.Second},
		timeout:       120 * time.Second,
		breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:         resilience.DefaultRetryConfig(),
		serverEnabled: serverEnabled,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *StreamingAdapter) Name() string { return a.name }

func (a *StreamingAdapter) IsAvailable(creds Credentials) bool {
	if creds.HasOverride {
		return true
	}
	if !a.serverEnabled || a.apiKey == "" {
		return false
	}
	return a.breaker.State() != resilience.CircuitOpen
}

type streamChatRequest struct {
	Model    string              `json:"model"`
	Messages []streamChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type streamChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			Text             string `json:"text"`
			ReasoningContent string `json:"reasoning_content"`
			Reasoning        string `json:"reasoning"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *StreamingAdapter) Complete(ctx context.Context, prompt string, creds Credentials) (string, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	apiKey := a.apiKey
	model := a.defaultModel
	if creds.HasOverride {
		if creds.APIKey != "" {
			apiKey = creds.APIKey
		}
		if creds.Model != "" {
			model = creds.Model
		}
	}

	start := time.Now()
	text, err := resilience.ExecuteVal(callCtx, a.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (string, error) {
			return a.stream(ctx, apiKey, model, prompt)
		})
	})
	return text, time.Since(start), err
}

func (a *StreamingAdapter) stream(ctx context.Context, apiKey, model, prompt string) (string, error) {
	payload, err := json.Marshal(streamChatRequest{
		Model:    model,
		Messages: []streamChatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: marshal streaming request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "llm: build streaming request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "llm: streaming request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(eris.Errorf("llm: streaming status %d", resp.StatusCode), resp.StatusCode)
		}
		return "", eris.Errorf("llm: streaming status %d", resp.StatusCode)
	}

	var content, reasoning strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
			content.WriteString(choice.Delta.Text)
			reasoning.WriteString(choice.Delta.ReasoningContent)
			reasoning.WriteString(choice.Delta.Reasoning)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", eris.Wrap(err, "llm: read stream")
	}

	if content.Len() == 0 {
		return reasoning.String(), nil
	}
	return content.String(), nil
}
