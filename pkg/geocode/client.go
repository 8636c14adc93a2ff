// Package geocode resolves free-text and postal-code searches to validated
// locations via a OneMap-style search service.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/carpark-cli/internal/monitoring"
	"github.com/sells-group/carpark-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://www.onemap.gov.sg"
	searchPath     = "/api/common/elastic/search"
)

// Client geocodes search queries.
type Client interface {
	// Search returns the top-ranked location for query. Failures are *Error
	// values carrying an ErrorKind.
	Search(ctx context.Context, query string) (*GeocodingResult, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the service host.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(4, 4),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retry.OnRetry == nil {
		g.retry.OnRetry = resilience.RetryLogger("geocode", "search")
	}
	return g
}

type searchResponse struct {
	Found         int         `json:"found"`
	TotalNumPages int         `json:"totalNumPages"`
	PageNum       int         `json:"pageNum"`
	Results       []RawResult `json:"results"`
}

// Search implements Client.
func (g *geocoder) Search(ctx context.Context, query string) (res *GeocodingResult, err error) {
	defer func() {
		monitoring.GeocodeRequestsTotal.WithLabelValues(Classify(err).String()).Inc()
	}()

	q := SanitizeQuery(query)
	if q == "" {
		return nil, newError(KindInvalidQuery, eris.New("geocode: empty query"))
	}

	raw, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]RawResult, error) {
		return g.search(ctx, q)
	})
	if err != nil {
		return nil, newError(Classify(err), err)
	}
	if len(raw) == 0 {
		return nil, newError(KindNotFound, ErrNotFound)
	}

	// Only the top-ranked hit is considered.
	result, ok := Normalize(raw[0])
	if !ok {
		zap.L().Debug("geocode: top result rejected",
			zap.String("query", q),
			zap.String("lat", raw[0].Latitude),
			zap.String("lng", raw[0].Longitude),
		)
		return nil, newError(KindNotFound, eris.Wrap(ErrNotFound, "geocode: result outside service region"))
	}
	return result, nil
}

func (g *geocoder) search(ctx context.Context, q string) ([]RawResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"searchVal":      {q},
		"returnGeom":     {"Y"},
		"getAddrDetails": {"Y"},
		"pageNum":        {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: service returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	return sr.Results, nil
}
