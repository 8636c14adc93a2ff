package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/cache"
	"github.com/sells-group/carpark-cli/internal/config"
	"github.com/sells-group/carpark-cli/internal/feed"
	"github.com/sells-group/carpark-cli/internal/fetcher"
	"github.com/sells-group/carpark-cli/internal/resilience"
	"github.com/sells-group/carpark-cli/internal/store"
	"github.com/sells-group/carpark-cli/internal/traveltime"
	"github.com/sells-group/carpark-cli/pkg/geocode"
	"github.com/sells-group/carpark-cli/pkg/routing"
)

// appEnv holds the initialized clients and caches shared by the commands.
type appEnv struct {
	Store       store.Store
	Fetcher     fetcher.Fetcher
	Feeds       *feed.Client
	TravelCache *cache.TravelTimeCache
	TravelTime  *traveltime.Service
	Geocoder    *geocode.CachedClient
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode, opens the cache store, loads the travel-time
// cache and builds every client. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, storeConfig(c.Cache))
	if err != nil {
		return nil, eris.Wrap(err, "open cache store")
	}

	tc := cache.NewTravelTimeCache(st, c.TravelTime.CacheTTL())
	if err := tc.Load(ctx); err != nil {
		// A cache that cannot be read starts empty.
		zap.L().Warn("travel-time cache load failed, starting empty", zap.Error(err))
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 30 * time.Second})

	router := routing.NewClient(
		routing.WithBaseURL(c.Routing.BaseURL),
		routing.WithProfile(c.Routing.Profile),
		routing.WithRateLimit(c.Routing.RateLimit),
	)

	gc := geocode.NewClient(
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: c.Geocode.MaxAttempts}),
	)

	return &appEnv{
		Store:       st,
		Fetcher:     f,
		Feeds:       feed.NewClient(f, feedConfig(c.Feeds)),
		TravelCache: tc,
		TravelTime:  traveltime.New(router, tc, travelConfig(c.TravelTime)),
		Geocoder:    geocode.NewCachedClient(gc, st, time.Duration(c.Geocode.CacheTTLHours)*time.Hour),
	}, nil
}

func storeConfig(c config.CacheConfig) store.Config {
	return store.Config{
		Driver:        c.Driver,
		SQLitePath:    c.SQLitePath,
		PostgresURL:   c.PostgresURL,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		KeyPrefix:     c.KeyPrefix,
	}
}

func feedConfig(c config.FeedsConfig) feed.Config {
	return feed.Config{
		InfoURL:         c.InfoURL,
		ResourceID:      c.InfoResourceID,
		PageSize:        c.PageSize,
		AvailabilityURL: c.AvailabilityURL,
		APIKey:          c.APIKey,
	}
}

func travelConfig(c config.TravelTimeConfig) traveltime.Config {
	return traveltime.Config{
		BatchSize:        c.BatchSize,
		BatchDelay:       c.BatchDelay(),
		RequestTimeout:   c.RequestTimeout(),
		FailureThreshold: c.FailureThreshold,
		TimeoutThreshold: c.TimeoutThreshold,
	}
}
