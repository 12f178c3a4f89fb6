package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/guberm/PlacesRecommendation/internal/resilience"
)

const (
	googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	providerName      = "google-geocode"
)

// GoogleProvider implements Provider against the Google Geocoding API,
// forward and reverse, rate-limited and retried the same way the rest of
// this codebase's outbound HTTP adapters are.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(g *GoogleProvider) { g.httpClient = hc }
}

// WithBaseURL overrides the Google Geocoding API base URL, for testing.
func WithBaseURL(u string) GoogleOption {
	return func(g *GoogleProvider) { g.baseURL = u }
}

// WithRateLimit sets the outbound requests-per-second limit.
func WithRateLimit(rps float64) GoogleOption {
	return func(g *GoogleProvider) { g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1) }
}

// WithRetryConfig overrides the default retry behavior for transient errors.
func WithRetryConfig(cfg resilience.RetryConfig) GoogleOption {
	return func(g *GoogleProvider) { g.retry = cfg }
}

// WithCircuitConfig overrides the default circuit breaker behavior.
func WithCircuitConfig(cfg resilience.CircuitBreakerConfig) GoogleOption {
	return func(g *GoogleProvider) { g.breaker = resilience.NewCircuitBreaker(cfg) }
}

// NewGoogleProvider creates a Provider backed by the Google Geocoding API.
// An empty apiKey yields a provider that always reports Available() == false.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *GoogleProvider) Name() string { return providerName }

func (g *GoogleProvider) Available() bool {
	if g.apiKey == "" {
		return false
	}
	return g.breaker.State() != resilience.CircuitOpen
}

func (g *GoogleProvider) Geocode(ctx context.Context, address string) (Result, error) {
	if g.apiKey == "" {
		return Result{}, eris.New("geocode: google api key not configured")
	}
	params := url.Values{"address": {address}, "key": {g.apiKey}}
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (Result, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (Result, error) {
			return g.call(ctx, params)
		})
	})
}

func (g *GoogleProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error) {
	if g.apiKey == "" {
		return Result{}, eris.New("geocode: google api key not configured")
	}
	params := url.Values{"latlng": {fmt.Sprintf("%f,%f", lat, lng)}, "key": {g.apiKey}}
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (Result, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (Result, error) {
			return g.call(ctx, params)
		})
	})
}

type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

func (g *GoogleProvider) call(ctx context.Context, params url.Values) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, eris.Wrap(err, "geocode: rate limit")
	}

	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, resilience.NewTransientError(eris.Wrap(err, "geocode: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, eris.Wrap(err, "geocode: read body")
	}

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Result{}, resilience.NewTransientError(
				eris.Errorf("geocode: status %d", resp.StatusCode), resp.StatusCode)
		}
		return Result{}, eris.Errorf("geocode: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed googleGeocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, eris.Wrap(err, "geocode: parse response")
	}

	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return Result{Matched: false}, nil
	}

	first := parsed.Results[0]
	return Result{
		Latitude:    first.Geometry.Location.Lat,
		Longitude:   first.Geometry.Location.Lng,
		DisplayName: first.FormattedAddress,
		Matched:     true,
	}, nil
}
