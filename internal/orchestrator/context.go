package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/guberm/PlacesRecommendation/internal/config"
	"github.com/guberm/PlacesRecommendation/internal/llm"
	"github.com/guberm/PlacesRecommendation/internal/model"
)

// RequestContext is the explicit, pass-by-value stand-in for the "ambient"
// per-request credential scope described in the design notes: a value
// captured once at the start of a request and threaded through every stage
// and adapter call, so concurrent requests never observe each other's
// overrides.
type RequestContext struct {
	RequestID   string
	Credentials map[string]llm.Credentials
}

// NewRequestContext builds a RequestContext for one incoming request,
// merging server-configured provider credentials with any per-request
// overrides the caller supplied. A user-supplied key can activate a
// provider that is otherwise disabled by server configuration.
func NewRequestContext(cfg *config.Config, req model.Request) RequestContext {
	rc := RequestContext{
		RequestID:   uuid.New().String(),
		Credentials: make(map[string]llm.Credentials, 3),
	}

	rc.Credentials["anthropic"] = buildCredentials(cfg.Providers.Anthropic.APIKey, cfg.Providers.Anthropic.Model, cfg.Providers.Anthropic.Endpoint, "anthropic", req.UserAPIKeys)
	rc.Credentials["perplexity"] = buildCredentials(cfg.Providers.Perplexity.APIKey, cfg.Providers.Perplexity.Model, cfg.Providers.Perplexity.Endpoint, "perplexity", req.UserAPIKeys)
	rc.Credentials["streaming"] = buildCredentials(cfg.Providers.Streaming.APIKey, cfg.Providers.Streaming.Model, cfg.Providers.Streaming.Endpoint, "streaming", req.UserAPIKeys)

	return rc
}

// buildCredentials starts from server configuration for tag and layers a
// per-request override on top when req.UserAPIKeys carries one, keyed by
// tag (the key) and tag+"Model"/tag+"Endpoint" (the optional overrides).
func buildCredentials(serverKey, serverModel, serverEndpoint, tag string, userKeys map[string]string) llm.Credentials {
	creds := llm.Credentials{APIKey: serverKey, Model: serverModel, Endpoint: serverEndpoint}

	override, hasOverride := userKeys[tag]
	if hasOverride && strings.TrimSpace(override) != "" {
		creds.APIKey = override
		creds.HasOverride = true
	}
	if m, ok := userKeys[tag+"Model"]; ok && strings.TrimSpace(m) != "" {
		creds.Model = m
		creds.HasOverride = true
	}
	if e, ok := userKeys[tag+"Endpoint"]; ok && strings.TrimSpace(e) != "" {
		creds.Endpoint = e
		creds.HasOverride = true
	}
	return creds
}

// pipelineContext is the mutable per-request record every stage reads from
// and writes to, matching spec's "plain record" data-model description. It
// is created by Run and never shared across requests.
type pipelineContext struct {
	rc  RequestContext
	req model.Request

	lat, lng           float64
	resolvedAddress    string
	geocodingAvailable bool

	cacheKey      string
	cacheHit      bool
	cachedResp    *model.Response

	generations []model.ProviderResult
	validations []model.CrossValidationResult
	scored      []model.Recommendation

	googlePlacesEnriched bool
	synthesizedBy        string

	phases []model.PhaseResult
}
