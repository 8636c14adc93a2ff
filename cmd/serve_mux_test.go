//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/config"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/monitoring"
	"github.com/sells-group/carpark-cli/internal/sampler"
	"github.com/sells-group/carpark-cli/internal/store"
	"github.com/sells-group/carpark-cli/internal/traveltime"
	"github.com/sells-group/carpark-cli/pkg/geocode"
	"github.com/sells-group/carpark-cli/pkg/geocode/mocks"
	"github.com/sells-group/carpark-cli/pkg/routing"
)

func intp(n int) *int { return &n }

func testFacilities() []model.Facility {
	return []model.Facility{
		{
			ID: "ACB", Name: "BLK 270/271 ALBERT CENTRE BASEMENT CAR PARK", Address: "BLK 270/271 ALBERT CENTRE",
			Lat: 1.30106, Lng: 103.85412,
			Lots:          []model.LotCategory{{Code: model.LotCar, Available: 105, Total: intp(583)}},
			AvailableLots: 105, TotalLots: 583,
			UpdatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			ID: "BM29", Name: "BLK 29 BENDEMEER ROAD", Address: "BLK 29 BENDEMEER ROAD",
			Lat: 1.31867, Lng: 103.86379,
			Lots:          []model.LotCategory{{Code: model.LotMotorcycle, Available: 12, Total: intp(40)}},
			AvailableLots: 12, TotalLots: 40,
		},
		{
			ID: "TPM1", Name: "TAMPINES MALL", Address: "4 TAMPINES CENTRAL 5",
			Lat: 1.35247, Lng: 103.94512,
			Lots:          []model.LotCategory{{Code: model.LotCar, Available: 0, Total: intp(300)}},
			AvailableLots: 0, TotalLots: 300,
		},
	}
}

func testDataset() *dataset {
	ds := newDataset()
	ds.Replace(&snapshot{
		ID:          "snap-1",
		GeneratedAt: time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC),
		Facilities:  testFacilities(),
	})
	return ds
}

func serve(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildMux_HealthEndpoint(t *testing.T) {
	mux := buildMux(nil, nil, muxOptions{})

	rr := serve(t, mux, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_MetricsEndpoint(t *testing.T) {
	mux := buildMux(nil, nil, muxOptions{})
	serve(t, mux, http.MethodGet, "/health", nil)

	rr := serve(t, mux, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "carpark_http_requests_total")
	assert.Contains(t, rr.Body.String(), `route="/health"`)
}

func TestBuildMux_NilDependencies(t *testing.T) {
	mux := buildMux(nil, nil, muxOptions{})

	for _, target := range []string{"/carparks", "/carparks/ACB", "/availability", "/geocode?q=x", "/status"} {
		rr := serve(t, mux, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, target)
	}
	rr := serve(t, mux, http.MethodPost, "/travel-times", bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestBuildMux_CORSPreflight(t *testing.T) {
	mux := buildMux(nil, nil, muxOptions{AllowedOrigins: []string{"https://map.example.sg"}})

	req := httptest.NewRequest(http.MethodOptions, "/carparks", nil)
	req.Header.Set("Origin", "https://map.example.sg")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, "https://map.example.sg", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestListCarparks_All(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	rr := serve(t, mux, http.MethodGet, "/carparks", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body carparkList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 3, body.Matched)
	assert.Equal(t, 3, body.Returned)
	assert.Len(t, body.Facilities, 3)
}

func TestListCarparks_Filters(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"text query", "/carparks?q=bendemeer", []string{"BM29"}},
		{"lot type", "/carparks?lots=Y", []string{"BM29"}},
		{"favorites", "/carparks?favorites=acb,tpm1", []string{"ACB", "TPM1"}},
		{"bbox", "/carparks?bbox=1.29,103.84,1.32,103.87", []string{"ACB", "BM29"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, mux, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var body carparkList
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			var ids []string
			for _, f := range body.Facilities {
				ids = append(ids, f.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
			assert.Equal(t, 3, body.Total)
		})
	}
}

func TestListCarparks_Cap(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	rr := serve(t, mux, http.MethodGet, "/carparks?cap=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body carparkList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Matched)
	assert.Equal(t, 2, body.Returned)
}

func TestListCarparks_BadParams(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	for _, target := range []string{
		"/carparks?bbox=1,2,3",
		"/carparks?lots=Z",
		"/carparks?cap=-1",
		"/carparks?cap=many",
	} {
		rr := serve(t, mux, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestListCarparks_PostalQuery(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("Search", mock.Anything, "189649").
		Return(&geocode.GeocodingResult{Lat: 1.30106, Lng: 103.85412, PostalCode: "189649"}, nil).Once()

	env := &appEnv{Geocoder: geocode.NewCachedClient(gc, store.NewMemory(), time.Hour)}
	mux := buildMux(env, testDataset(), muxOptions{Sampler: config.SamplerConfig{Cap: 60, PostalRadiusKm: 2.5}})

	rr := serve(t, mux, http.MethodGet, "/carparks?q=189649", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body carparkList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	var ids []string
	for _, f := range body.Facilities {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []string{"ACB", "BM29"}, ids)
}

func TestListCarparks_PostalLookupFailureStillAnswers(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("Search", mock.Anything, "189649").
		Return(nil, errors.New("dial tcp: connection refused")).Once()

	env := &appEnv{Geocoder: geocode.NewCachedClient(gc, store.NewMemory(), time.Hour)}
	mux := buildMux(env, testDataset(), muxOptions{Sampler: config.SamplerConfig{Cap: 60, PostalRadiusKm: 2.5}})

	rr := serve(t, mux, http.MethodGet, "/carparks?q=189649", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body carparkList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 0, body.Matched)
	assert.Empty(t, body.Facilities)
}

func TestResolvePostal(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantQuery string
	}{
		{"network failure falls back to text", errors.New("dial tcp: connection refused"), false, "189649"},
		{"rate limited falls back to text", errors.New("429 too many requests"), false, "189649"},
		{"not found falls back to text", geocode.ErrNotFound, false, "189649"},
		{"invalid query is an error", &geocode.Error{Kind: geocode.KindInvalidQuery}, true, "189649"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc := mocks.NewMockClient(t)
			gc.On("Search", mock.Anything, "189649").Return(nil, tt.err).Once()

			crit := sampler.Criteria{Query: "189649"}
			err := resolvePostal(context.Background(), gc, &crit, 2.5)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantQuery, crit.Query)
			assert.Nil(t, crit.Near)
		})
	}
}

func TestGetCarpark(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	rr := serve(t, mux, http.MethodGet, "/carparks/acb", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var f model.Facility
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &f))
	assert.Equal(t, "ACB", f.ID)
	assert.Equal(t, 583, f.TotalLots)

	rr = serve(t, mux, http.MethodGet, "/carparks/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAvailability(t *testing.T) {
	mux := buildMux(nil, testDataset(), muxOptions{})

	rr := serve(t, mux, http.MethodGet, "/availability", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var items []availabilityItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 3)
	assert.Equal(t, "ACB", items[0].ID)
	assert.Equal(t, 105, items[0].AvailableLots)
	assert.True(t, items[1].UpdatedAt.IsZero())
}

type staticRouter struct{}

func (staticRouter) Route(context.Context, routing.Coord, routing.Coord) (*routing.Route, error) {
	return &routing.Route{DistanceMeters: 3000, DurationSeconds: 420}, nil
}

func travelEnv() *appEnv {
	cfg := traveltime.DefaultConfig()
	cfg.BatchDelay = 0
	return &appEnv{TravelTime: traveltime.New(staticRouter{}, nil, cfg)}
}

func TestTravelTimes(t *testing.T) {
	mux := buildMux(travelEnv(), testDataset(), muxOptions{})

	payload := `{"origin":{"lat":1.30,"lng":103.80},"ids":["ACB","tpm1","MISSING"],"destinations":[{"id":"X1","lat":1.31,"lng":103.81}]}`
	rr := serve(t, mux, http.MethodPost, "/travel-times", bytes.NewBufferString(payload))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Results map[string]model.TravelTime `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 3)
	for _, id := range []string{"ACB", "TPM1", "X1"} {
		tt, ok := body.Results[id]
		require.True(t, ok, id)
		assert.Equal(t, 3.0, tt.DistanceKm)
		assert.Equal(t, 7.0, tt.DurationMin)
		assert.Equal(t, model.SourceRouting, tt.Source)
	}
}

func TestTravelTimes_BadRequests(t *testing.T) {
	mux := buildMux(travelEnv(), testDataset(), muxOptions{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"origin":`},
		{"origin outside region", `{"origin":{"lat":51.5,"lng":-0.12},"ids":["ACB"]}`},
		{"no destinations", `{"origin":{"lat":1.30,"lng":103.80}}`},
		{"unknown ids only", `{"origin":{"lat":1.30,"lng":103.80},"ids":["NOPE"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, mux, http.MethodPost, "/travel-times", bytes.NewBufferString(tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGeocode_Success(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("Search", mock.Anything, "018956").
		Return(&geocode.GeocodingResult{Lat: 1.2789, Lng: 103.8536, Address: "10 BAYFRONT AVENUE", PostalCode: "018956"}, nil).Once()

	env := &appEnv{Geocoder: geocode.NewCachedClient(gc, store.NewMemory(), time.Hour)}
	mux := buildMux(env, nil, muxOptions{})

	for range 2 {
		rr := serve(t, mux, http.MethodGet, "/geocode?q=018956", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var res geocode.GeocodingResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, "018956", res.PostalCode)
	}
}

func TestGeocode_ErrorStatus(t *testing.T) {
	tests := []struct {
		kind geocode.ErrorKind
		want int
	}{
		{geocode.KindInvalidQuery, http.StatusBadRequest},
		{geocode.KindNotFound, http.StatusNotFound},
		{geocode.KindRateLimited, http.StatusTooManyRequests},
		{geocode.KindTimeout, http.StatusGatewayTimeout},
		{geocode.KindNetwork, http.StatusBadGateway},
		{geocode.KindUnknown, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			gc := mocks.NewMockClient(t)
			gc.On("Search", mock.Anything, "nowhere").Return(nil, &geocode.Error{Kind: tt.kind})

			env := &appEnv{Geocoder: geocode.NewCachedClient(gc, store.NewMemory(), time.Hour)}
			rr := serve(t, buildMux(env, nil, muxOptions{}), http.MethodGet, "/geocode?q=nowhere", nil)
			assert.Equal(t, tt.want, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.kind.String(), body["kind"])
			assert.Equal(t, geocode.UserMessage(tt.kind), body["error"])
		})
	}
}

func TestStatus(t *testing.T) {
	ds := testDataset()
	mcfg := config.MonitoringConfig{StaleAfterMins: 0, MinFacilities: 1}
	checker := monitoring.NewChecker(monitoring.NewCollector(ds, nil), monitoring.NewAlerter(mcfg), mcfg)
	checker.Check(context.Background())

	rr := serve(t, buildMux(nil, ds, muxOptions{Checker: checker}), http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Metrics monitoring.MetricsSnapshot `json:"metrics"`
		Alerts  []monitoring.Alert         `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Metrics.Facilities)
	assert.Equal(t, 1, body.Metrics.WithAvailability)
	assert.Equal(t, 117, body.Metrics.AvailableLots)
	assert.NotNil(t, body.Alerts)
}
