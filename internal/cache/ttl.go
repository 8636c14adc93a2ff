package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/store"
)

type envelope[T any] struct {
	Value     T         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TTL is a typed application cache whose entries carry their own expiry.
// Storage failures are logged and reported as misses.
type TTL[T any] struct {
	store   store.Store
	prefix  string
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewTTL creates a cache that stores values under prefix for ttl.
func NewTTL[T any](s store.Store, prefix string, ttl time.Duration, opts ...Option) *TTL[T] {
	o := buildOptions(opts)
	return &TTL[T]{store: s, prefix: prefix, ttl: ttl, nowFunc: o.now}
}

// Get returns the value for key if present and unexpired. Expired or
// unreadable entries are removed.
func (c *TTL[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	k := c.prefix + key

	raw, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("cache: read failed", zap.String("key", k), zap.Error(err))
		}
		return zero, false
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		zap.L().Warn("cache: corrupt entry", zap.String("key", k), zap.Error(err))
		c.remove(ctx, k)
		return zero, false
	}
	if !c.nowFunc().Before(env.ExpiresAt) {
		c.remove(ctx, k)
		return zero, false
	}
	return env.Value, true
}

// Set stores v under key with the cache's TTL.
func (c *TTL[T]) Set(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(envelope[T]{Value: v, ExpiresAt: c.nowFunc().Add(c.ttl)})
	if err != nil {
		return eris.Wrap(err, "cache: encode entry")
	}
	if err := c.store.Set(ctx, c.prefix+key, raw); err != nil {
		return eris.Wrapf(err, "cache: write %s", key)
	}
	return nil
}

// Sweep removes expired and unreadable entries under the cache prefix.
func (c *TTL[T]) Sweep(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, eris.Wrap(err, "cache: list keys")
	}

	now := c.nowFunc()
	removed := 0
	for _, k := range keys {
		raw, err := c.store.Get(ctx, k)
		if err != nil {
			continue
		}
		var env envelope[T]
		if json.Unmarshal(raw, &env) == nil && now.Before(env.ExpiresAt) {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			return removed, eris.Wrapf(err, "cache: delete %s", k)
		}
		removed++
	}
	return removed, nil
}

func (c *TTL[T]) remove(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		zap.L().Debug("cache: delete failed", zap.String("key", key), zap.Error(err))
	}
}
