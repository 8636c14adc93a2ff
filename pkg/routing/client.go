// Package routing is a client for an OSRM-compatible driving route service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/carpark-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://router.project-osrm.org"
	defaultProfile = "driving"
)

// ErrNoRoute is returned when the service answers but has no usable route.
var ErrNoRoute = eris.New("routing: no route")

// Client computes driving routes between two coordinates.
type Client interface {
	Route(ctx context.Context, from, to Coord) (*Route, error)
}

// Coord is a WGS84 coordinate in degrees.
type Coord struct {
	Lat float64
	Lng float64
}

// Route is the first route returned by the service.
type Route struct {
	DistanceMeters  float64 `json:"distance"`
	DurationSeconds float64 `json:"duration"`
}

// DistanceKm returns the route length in kilometres.
func (r Route) DistanceKm() float64 { return r.DistanceMeters / 1000 }

// DurationMin returns the route duration in minutes.
func (r Route) DurationMin() float64 { return r.DurationSeconds / 60 }

type routeResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Routes  []Route `json:"routes"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithProfile sets the routing profile (default "driving").
func WithProfile(profile string) Option {
	return func(c *httpClient) {
		if profile != "" {
			c.profile = profile
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

type httpClient struct {
	baseURL string
	profile string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a routing client. Per-request deadlines come from ctx.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		profile: defaultProfile,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// routeURL builds the request URL. The service takes longitude first.
func (c *httpClient) routeURL(from, to Coord) string {
	return fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=false",
		c.baseURL, c.profile, from.Lng, from.Lat, to.Lng, to.Lat)
}

func (c *httpClient) Route(ctx context.Context, from, to Coord) (*Route, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "routing: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(from, to), nil)
	if err != nil {
		return nil, eris.Wrap(err, "routing: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "routing: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "routing: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("routing: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result routeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "routing: unmarshal response")
	}

	if !strings.EqualFold(result.Code, "Ok") || len(result.Routes) == 0 {
		return nil, eris.Wrapf(ErrNoRoute, "code=%s message=%s", result.Code, result.Message)
	}

	r := result.Routes[0]
	return &r, nil
}
