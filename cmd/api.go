package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/config"
	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/monitoring"
	"github.com/sells-group/carpark-cli/internal/sampler"
	"github.com/sells-group/carpark-cli/internal/traveltime"
	"github.com/sells-group/carpark-cli/pkg/geocode"
)

// maxTravelDestinations bounds one travel-time request.
const maxTravelDestinations = 500

// muxOptions carries the settings the HTTP surface reads.
type muxOptions struct {
	AllowedOrigins []string
	Sampler        config.SamplerConfig
	Checker        *monitoring.Checker
}

type api struct {
	env  *appEnv
	data *dataset
	opts muxOptions
}

// buildMux wires the HTTP routes. env and data may be nil; the routes that
// need them answer 503.
func buildMux(env *appEnv, data *dataset, opts muxOptions) http.Handler {
	if opts.Sampler.Cap <= 0 {
		opts.Sampler.Cap = 60
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	a := &api{env: env, data: data, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", a.handleHealth)
	r.Get("/status", a.handleStatus)
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())
	r.Get("/carparks", a.handleListCarparks)
	r.Get("/carparks/{id}", a.handleGetCarpark)
	r.Get("/availability", a.handleAvailability)
	r.Post("/travel-times", a.handleTravelTimes)
	r.Get("/geocode", a.handleGeocode)
	return r
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		monitoring.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		monitoring.HTTPDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if a.opts.Checker == nil {
		writeError(w, http.StatusServiceUnavailable, "health checker not running")
		return
	}
	snap, alerts := a.opts.Checker.Latest()
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": snap,
		"alerts":  alerts,
	})
}

type carparkList struct {
	Total      int              `json:"total"`
	Matched    int              `json:"matched"`
	Returned   int              `json:"returned"`
	Facilities []model.Facility `json:"facilities"`
}

func (a *api) handleListCarparks(w http.ResponseWriter, r *http.Request) {
	if a.data == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset not loaded")
		return
	}
	q := r.URL.Query()

	bounds := geo.Singapore
	if bbox := q.Get("bbox"); bbox != "" {
		b, err := parseBBox(bbox)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bbox")
			return
		}
		bounds = b
	}

	lots, err := parseLots(splitList(q.Get("lots")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := a.opts.Sampler.Cap
	if v := q.Get("cap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "cap must be a positive integer")
			return
		}
		limit = n
	}

	crit := sampler.Criteria{
		Query:     geocode.SanitizeQuery(q.Get("q")),
		Lots:      lots,
		Favorites: toSet(splitList(q.Get("favorites"))),
		Viewport:  &bounds,
	}
	if a.env != nil && a.env.Geocoder != nil {
		if err := resolvePostal(r.Context(), a.env.Geocoder, &crit, a.opts.Sampler.PostalRadiusKm); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	all := a.data.All()
	matched := sampler.Filter(all, crit)
	shown := sampler.Sample(matched, bounds, limit)
	writeJSON(w, http.StatusOK, carparkList{
		Total:      len(all),
		Matched:    len(matched),
		Returned:   len(shown),
		Facilities: shown,
	})
}

func (a *api) handleGetCarpark(w http.ResponseWriter, r *http.Request) {
	if a.data == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset not loaded")
		return
	}
	id := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))
	f, ok := a.data.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "carpark not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type availabilityItem struct {
	ID            string              `json:"id"`
	AvailableLots int                 `json:"available_lots"`
	TotalLots     int                 `json:"total_lots"`
	Lots          []model.LotCategory `json:"lots"`
	UpdatedAt     time.Time           `json:"updated_at,omitzero"`
}

func (a *api) handleAvailability(w http.ResponseWriter, _ *http.Request) {
	if a.data == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset not loaded")
		return
	}
	all := a.data.All()
	out := make([]availabilityItem, 0, len(all))
	for _, f := range all {
		out = append(out, availabilityItem{
			ID:            f.ID,
			AvailableLots: f.AvailableLots,
			TotalLots:     f.TotalLots,
			Lots:          f.Lots,
			UpdatedAt:     f.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type travelTimeRequest struct {
	Origin       geo.Point                `json:"origin"`
	Destinations []traveltime.Destination `json:"destinations"`
	IDs          []string                 `json:"ids"`
}

func (a *api) handleTravelTimes(w http.ResponseWriter, r *http.Request) {
	if a.env == nil || a.env.TravelTime == nil {
		writeError(w, http.StatusServiceUnavailable, "travel-time service not configured")
		return
	}

	var req travelTimeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !geo.Singapore.Contains(req.Origin.Lat, req.Origin.Lng) {
		writeError(w, http.StatusBadRequest, "origin is outside the service region")
		return
	}

	dests := req.Destinations
	if a.data != nil {
		for _, id := range req.IDs {
			if f, ok := a.data.Get(strings.ToUpper(strings.TrimSpace(id))); ok {
				dests = append(dests, traveltime.Destination{ID: f.ID, Lat: f.Lat, Lng: f.Lng})
			}
		}
	}
	if len(dests) == 0 {
		writeError(w, http.StatusBadRequest, "no destinations")
		return
	}
	if len(dests) > maxTravelDestinations {
		writeError(w, http.StatusBadRequest, "too many destinations")
		return
	}

	results := a.env.TravelTime.GetTravelTimesCached(r.Context(), req.Origin, dests)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *api) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if a.env == nil || a.env.Geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoder not configured")
		return
	}
	res, err := a.env.Geocoder.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		kind := geocode.Classify(err)
		writeJSON(w, geocodeStatus(kind), map[string]string{
			"error": geocode.UserMessage(kind),
			"kind":  kind.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func geocodeStatus(kind geocode.ErrorKind) int {
	switch kind {
	case geocode.KindInvalidQuery:
		return http.StatusBadRequest
	case geocode.KindNotFound:
		return http.StatusNotFound
	case geocode.KindRateLimited:
		return http.StatusTooManyRequests
	case geocode.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
