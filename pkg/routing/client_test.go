package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/resilience"
)

var (
	orchard = Coord{Lat: 1.3048, Lng: 103.8318}
	marina  = Coord{Lat: 1.2834, Lng: 103.8607}
)

func TestRoute_Success(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[{"distance":4250.5,"duration":612.0},{"distance":9999,"duration":9999}]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	r, err := c.Route(context.Background(), orchard, marina)
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/103.831800,1.304800;103.860700,1.283400", gotPath)
	assert.Equal(t, "overview=false", gotQuery)
	assert.InDelta(t, 4.2505, r.DistanceKm(), 1e-9)
	assert.InDelta(t, 10.2, r.DurationMin(), 1e-9)
}

func TestRoute_Profile(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[{"distance":1,"duration":1}]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithProfile("car"))
	_, err := c.Route(context.Background(), orchard, marina)
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/route/v1/car/")
}

func TestRoute_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":"NoRoute","message":"Impossible route between points","routes":[]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Route(context.Background(), orchard, marina)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRoute))
	assert.False(t, resilience.IsTransient(err))
}

func TestRoute_EmptyRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[]}`)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Route(context.Background(), orchard, marina)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRoute_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>gateway</html>`)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Route(context.Background(), orchard, marina)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRoute_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Route(context.Background(), orchard, marina)
	require.Error(t, err)

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestRoute_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Route(context.Background(), orchard, marina)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestRoute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[{"distance":1,"duration":1}]}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(WithBaseURL(srv.URL)).Route(ctx, orchard, marina)
	require.Error(t, err)
	assert.True(t, resilience.IsTimeout(err))
}

func TestRoute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).Route(context.Background(), orchard, marina)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
