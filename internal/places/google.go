package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/guberm/PlacesRecommendation/internal/model"
	"github.com/guberm/PlacesRecommendation/internal/resilience"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"
	providerName   = "google-places"
)

// GoogleProvider implements Provider against the Google Places API's Text
// Search endpoint (v1), the same field-mask/API-key header pattern used by
// this codebase's other Google Places integration.
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

// WithBaseURL overrides the API base URL, for testing.
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

// NewGoogleProvider creates a Provider backed by the Google Places API.
// An empty apiKey yields a provider that always reports Available() == false.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
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

type textSearchRequest struct {
	TextQuery         string             `json:"textQuery"`
	MaxResultCount    int                `json:"maxResultCount,omitempty"`
	LocationBias      *locationBias      `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center centerPoint `json:"center"`
	Radius float64     `json:"radius"`
}

type centerPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type textSearchResponse struct {
	Places []googlePlace `json:"places"`
}

type googlePlace struct {
	ID              string      `json:"id"`
	DisplayName     displayName `json:"displayName"`
	FormattedAddr   string      `json:"formattedAddress"`
	Rating          *float64    `json:"rating"`
	UserRatingCount *int        `json:"userRatingCount"`
	Location        location    `json:"location"`
	NationalPhone   string      `json:"nationalPhoneNumber"`
	WebsiteURI      string      `json:"websiteUri"`
}

type displayName struct {
	Text string `json:"text"`
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (g *GoogleProvider) Nearby(ctx context.Context, q Query) ([]model.Place, error) {
	if g.apiKey == "" {
		return nil, eris.New("places: google api key not configured")
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 20
	}

	body := textSearchRequest{
		TextQuery:      searchText(q.Category),
		MaxResultCount: maxResults,
		LocationBias: &locationBias{Circle: circle{
			Center: centerPoint{Latitude: q.Latitude, Longitude: q.Longitude},
			Radius: float64(q.RadiusMeters),
		}},
	}

	resp, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*textSearchResponse, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*textSearchResponse, error) {
			return g.call(ctx, body)
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Place, 0, len(resp.Places))
	for _, p := range resp.Places {
		out = append(out, model.Place{
			Name:                p.DisplayName.Text,
			Address:             p.FormattedAddr,
			Latitude:            p.Location.Latitude,
			Longitude:           p.Location.Longitude,
			Category:            q.Category,
			Rating:              p.Rating,
			UserRatingsTotal:    p.UserRatingCount,
			ExternalID:          p.ID,
			Phone:               p.NationalPhone,
			Website:             p.WebsiteURI,
			IsVerifiedRealPlace: true,
		})
	}
	return out, nil
}

func (g *GoogleProvider) call(ctx context.Context, reqBody textSearchRequest) (*textSearchResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit")
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "places: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName,places.formattedAddress,"+
		"places.rating,places.userRatingCount,places.location,places.nationalPhoneNumber,places.websiteUri")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "places: send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("places: status %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, eris.Errorf("places: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed textSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return &parsed, nil
}

func searchText(cat model.Category) string {
	if cat == model.CategoryAll || cat == "" {
		return "interesting places"
	}
	return string(cat)
}
