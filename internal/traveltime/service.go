// Package traveltime estimates driving distance and duration from an origin
// to many destinations, using the routing service where it answers and a
// geodesic estimate where it does not.
package traveltime

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/carpark-cli/internal/cache"
	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/monitoring"
	"github.com/sells-group/carpark-cli/internal/resilience"
	"github.com/sells-group/carpark-cli/pkg/routing"
)

// Destination is one place to estimate a drive to.
type Destination struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Config controls batching and the per-call breaker.
type Config struct {
	BatchSize        int
	BatchDelay       time.Duration
	RequestTimeout   time.Duration
	FailureThreshold int
	TimeoutThreshold int
}

// DefaultConfig returns the standard enrichment settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:        10,
		BatchDelay:       100 * time.Millisecond,
		RequestTimeout:   5 * time.Second,
		FailureThreshold: 5,
		TimeoutThreshold: 3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = def.TimeoutThreshold
	}
	return c
}

// Service computes travel times. The cache is optional.
type Service struct {
	router routing.Client
	cache  *cache.TravelTimeCache
	cfg    Config
}

// New creates a Service. tc may be nil, in which case the cached path
// always goes to the network.
func New(router routing.Client, tc *cache.TravelTimeCache, cfg Config) *Service {
	return &Service{router: router, cache: tc, cfg: cfg.withDefaults()}
}

// Fallback estimates a drive from straight-line distance.
func Fallback(origin geo.Point, d Destination) model.TravelTime {
	km := geo.HaversineKm(origin.Lat, origin.Lng, d.Lat, d.Lng)
	return model.TravelTime{
		DistanceKm:  km,
		DurationMin: geo.EstimateDrivingMinutes(km),
		Source:      model.SourceFallback,
	}
}

// GetTravelTimes returns one result per destination id. Destinations are
// queried in batches, concurrently within a batch. Any failed lookup falls
// back to the geodesic estimate for that destination only; once the call's
// breaker trips, the remaining destinations skip the network entirely.
// The call ignores caller cancellation and always runs every batch; each
// lookup is still bounded by the per-request timeout.
func (s *Service) GetTravelTimes(ctx context.Context, origin geo.Point, dests []Destination) map[string]model.TravelTime {
	ctx = context.WithoutCancel(ctx)
	dests = validDestinations(dests)
	out := make(map[string]model.TravelTime, len(dests))
	if len(dests) == 0 {
		return out
	}

	log := zap.L().With(
		zap.String("component", "traveltime"),
		zap.String("run_id", uuid.NewString()),
	)

	breaker := resilience.NewCallBreaker(resilience.BreakerConfig{
		FailureThreshold: s.cfg.FailureThreshold,
		TimeoutThreshold: s.cfg.TimeoutThreshold,
		OnTrip: func(reason resilience.TripReason) {
			monitoring.BreakerTripsTotal.WithLabelValues(string(reason)).Inc()
			log.Warn("traveltime: routing breaker tripped, using estimates for the rest of the call",
				zap.String("reason", string(reason)))
		},
	})

	var mu sync.Mutex
	batches := chunk(dests, s.cfg.BatchSize)
	for i, batch := range batches {
		if i > 0 {
			s.pause(ctx)
		}

		// Plain group: one destination failing must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(s.cfg.BatchSize)
		for _, d := range batch {
			g.Go(func() error {
				tt := s.lookup(ctx, breaker, origin, d)
				mu.Lock()
				out[d.ID] = tt
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	if len(out) < len(dests) {
		log.Warn("traveltime: fewer results than destinations, backfilling with estimates",
			zap.Int("results", len(out)),
			zap.Int("destinations", len(dests)),
		)
	}
	for _, d := range dests {
		if _, ok := out[d.ID]; !ok {
			out[d.ID] = Fallback(origin, d)
		}
	}

	failures, _ := breaker.Counters()
	log.Debug("traveltime: call complete",
		zap.Int("destinations", len(dests)),
		zap.Int("batches", len(batches)),
		zap.Int("failures", failures),
		zap.Bool("breaker_tripped", breaker.Tripped()),
	)
	return out
}

func (s *Service) lookup(ctx context.Context, cb *resilience.CallBreaker, origin geo.Point, d Destination) model.TravelTime {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	route, err := resilience.Call(reqCtx, cb, func(ctx context.Context) (*routing.Route, error) {
		r, err := s.router.Route(ctx,
			routing.Coord{Lat: origin.Lat, Lng: origin.Lng},
			routing.Coord{Lat: d.Lat, Lng: d.Lng},
		)
		if err != nil {
			return nil, err
		}
		if !validRoute(r) {
			return nil, routing.ErrNoRoute
		}
		return r, nil
	})

	switch {
	case err == nil:
		monitoring.RoutingDurationSeconds.Observe(time.Since(start).Seconds())
		monitoring.RoutingRequestsTotal.WithLabelValues("success").Inc()
		return model.TravelTime{
			DistanceKm:  math.Round(route.DistanceKm()*10) / 10,
			DurationMin: math.Round(route.DurationMin()),
			Source:      model.SourceRouting,
		}
	case errors.Is(err, resilience.ErrCircuitOpen):
		monitoring.RoutingRequestsTotal.WithLabelValues("skipped").Inc()
	default:
		monitoring.RoutingDurationSeconds.Observe(time.Since(start).Seconds())
		monitoring.RoutingRequestsTotal.WithLabelValues("failure").Inc()
		zap.L().Debug("traveltime: route lookup failed",
			zap.String("destination", d.ID),
			zap.Bool("timeout", resilience.IsTimeout(err)),
			zap.Error(err),
		)
	}

	monitoring.FallbacksTotal.Inc()
	return Fallback(origin, d)
}

func (s *Service) pause(ctx context.Context) {
	if s.cfg.BatchDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.BatchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// GetTravelTimesCached serves results from the travel-time cache when the
// origin's entry is fresh and complete, fetches only the missing destinations
// when it is fresh but partial, and refetches everything otherwise.
// Persistence failures are logged and never affect the result.
func (s *Service) GetTravelTimesCached(ctx context.Context, origin geo.Point, dests []Destination) map[string]model.TravelTime {
	ctx = context.WithoutCancel(ctx)
	dests = validDestinations(dests)
	if s.cache == nil {
		return s.GetTravelTimes(ctx, origin, dests)
	}

	key := cache.OriginKey(origin)
	unlock := s.cache.Lock(key)
	defer unlock()

	ids := make([]string, len(dests))
	for i, d := range dests {
		ids[i] = d.ID
	}

	entry, fresh, found := s.cache.Get(key)
	switch {
	case found && fresh && entry.Covers(ids):
		monitoring.TravelTimeCacheTotal.WithLabelValues("hit").Inc()
		return pick(entry.Results, ids)

	case found && fresh:
		monitoring.TravelTimeCacheTotal.WithLabelValues("partial").Inc()
		missing := make(map[string]bool)
		for _, id := range entry.Missing(ids) {
			missing[id] = true
		}
		var todo []Destination
		for _, d := range dests {
			if missing[d.ID] {
				todo = append(todo, d)
			}
		}
		fetched := s.GetTravelTimes(ctx, origin, todo)
		merged, err := s.cache.Merge(ctx, key, fetched)
		if err != nil {
			zap.L().Warn("traveltime: cache persist failed", zap.String("origin", key), zap.Error(err))
		}
		return pick(merged.Results, ids)

	default:
		monitoring.TravelTimeCacheTotal.WithLabelValues("miss").Inc()
		fetched := s.GetTravelTimes(ctx, origin, dests)
		if err := s.cache.Put(ctx, key, fetched); err != nil {
			zap.L().Warn("traveltime: cache persist failed", zap.String("origin", key), zap.Error(err))
		}
		return fetched
	}
}

// Destinations converts facilities into routing destinations.
func Destinations(facilities []model.Facility) []Destination {
	out := make([]Destination, len(facilities))
	for i, f := range facilities {
		out[i] = Destination{ID: f.ID, Lat: f.Lat, Lng: f.Lng}
	}
	return out
}

// Apply writes travel times onto the matching facilities.
func Apply(facilities []model.Facility, times map[string]model.TravelTime) {
	for i := range facilities {
		tt, ok := times[facilities[i].ID]
		if !ok {
			continue
		}
		km, mins := tt.DistanceKm, tt.DurationMin
		facilities[i].DistanceKm = &km
		facilities[i].DrivingMinutes = &mins
	}
}

// Annotate fills DistanceKm and DrivingMinutes on every facility, in place.
func (s *Service) Annotate(ctx context.Context, facilities []model.Facility, origin geo.Point) {
	if len(facilities) == 0 {
		return
	}
	Apply(facilities, s.GetTravelTimesCached(ctx, origin, Destinations(facilities)))
}

func validRoute(r *routing.Route) bool {
	if r == nil {
		return false
	}
	for _, v := range []float64{r.DistanceMeters, r.DurationSeconds} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// validDestinations drops blank ids and keeps the first of any duplicate.
func validDestinations(dests []Destination) []Destination {
	seen := make(map[string]bool, len(dests))
	out := make([]Destination, 0, len(dests))
	for _, d := range dests {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

func chunk(dests []Destination, size int) [][]Destination {
	var out [][]Destination
	for start := 0; start < len(dests); start += size {
		end := min(start+size, len(dests))
		out = append(out, dests[start:end])
	}
	return out
}

func pick(results map[string]model.TravelTime, ids []string) map[string]model.TravelTime {
	out := make(map[string]model.TravelTime, len(ids))
	for _, id := range ids {
		if tt, ok := results[id]; ok {
			out[id] = tt
		}
	}
	return out
}
