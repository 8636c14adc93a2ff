package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/cache"
	"github.com/sells-group/carpark-cli/internal/store"
)

// CachedClient answers repeated searches from the application cache. Only
// successful lookups are cached.
type CachedClient struct {
	inner   Client
	entries *cache.TTL[GeocodingResult]
}

// NewCachedClient wraps inner with a cache over s.
func NewCachedClient(inner Client, s store.Store, ttl time.Duration, opts ...cache.Option) *CachedClient {
	return &CachedClient{
		inner:   inner,
		entries: cache.NewTTL[GeocodingResult](s, KeyPrefix, ttl, opts...),
	}
}

// Search implements Client.
func (c *CachedClient) Search(ctx context.Context, query string) (*GeocodingResult, error) {
	q := SanitizeQuery(query)
	if q == "" {
		return c.inner.Search(ctx, query)
	}

	key := entryKey(q, KindOf(q))
	if hit, ok := c.entries.Get(ctx, key); ok {
		zap.L().Debug("geocode cache hit", zap.String("key", KeyPrefix+key))
		return &hit, nil
	}

	result, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.entries.Set(ctx, key, *result); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("key", KeyPrefix+key), zap.Error(err))
	}
	return result, nil
}

// Sweep removes expired geocoding entries.
func (c *CachedClient) Sweep(ctx context.Context) (int, error) {
	return c.entries.Sweep(ctx)
}
