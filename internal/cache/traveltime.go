// Package cache holds the travel-time cache and the TTL-tagged application
// caches. Both sit on a store.Store so entries survive restarts when a
// persistent driver is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/store"
)

// TravelTimePrefix namespaces travel-time entries in the store.
const TravelTimePrefix = "tt:"

// DefaultTravelTimeTTL is how long an origin's results stay fresh.
const DefaultTravelTimeTTL = 15 * time.Minute

// OriginKey rounds an origin to three decimals (about 110 m) so nearby
// requests share an entry.
func OriginKey(p geo.Point) string {
	return fmt.Sprintf("%.3f,%.3f", p.Lat, p.Lng)
}

// Entry is the cached result set for one origin.
type Entry struct {
	Results   map[string]model.TravelTime `json:"results"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Covers reports whether every id has a result in the entry.
func (e Entry) Covers(ids []string) bool {
	for _, id := range ids {
		if _, ok := e.Results[id]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the ids without a result, in input order.
func (e Entry) Missing(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := e.Results[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Option configures a cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Stats contains travel-time cache statistics.
type Stats struct {
	Entries int     `json:"entries" yaml:"entries"`
	Hits    int64   `json:"hits" yaml:"hits"`
	Misses  int64   `json:"misses" yaml:"misses"`
	HitRate float64 `json:"hit_rate" yaml:"hit_rate"`
}

// TravelTimeCache maps a rounded origin to its destination results. State is
// loaded from the store once and written through on every change.
type TravelTimeCache struct {
	store   store.Store
	ttl     time.Duration
	nowFunc func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry

	lockMu sync.Mutex
	locks  map[string]*keyLock

	loadOnce sync.Once
	loadErr  error

	hits   atomic.Int64
	misses atomic.Int64
}

// NewTravelTimeCache creates a cache over s. A non-positive ttl uses
// DefaultTravelTimeTTL.
func NewTravelTimeCache(s store.Store, ttl time.Duration, opts ...Option) *TravelTimeCache {
	if ttl <= 0 {
		ttl = DefaultTravelTimeTTL
	}
	o := buildOptions(opts)
	return &TravelTimeCache{
		store:   s,
		ttl:     ttl,
		nowFunc: o.now,
		entries: make(map[string]Entry),
		locks:   make(map[string]*keyLock),
	}
}

// TTL returns the configured time-to-live.
func (c *TravelTimeCache) TTL() time.Duration { return c.ttl }

// Load reads persisted entries into memory. Only the first call touches the
// store. Unreadable entries are dropped and logged.
func (c *TravelTimeCache) Load(ctx context.Context) error {
	c.loadOnce.Do(func() {
		c.loadErr = c.load(ctx)
	})
	return c.loadErr
}

func (c *TravelTimeCache) load(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, TravelTimePrefix)
	if err != nil {
		return eris.Wrap(err, "cache: list travel-time keys")
	}

	loaded := make(map[string]Entry, len(keys))
	for _, k := range keys {
		raw, err := c.store.Get(ctx, k)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				zap.L().Warn("cache: read travel-time entry", zap.String("key", k), zap.Error(err))
			}
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			zap.L().Warn("cache: corrupt travel-time entry", zap.String("key", k), zap.Error(err))
			continue
		}
		if e.Results == nil {
			e.Results = make(map[string]model.TravelTime)
		}
		loaded[strings.TrimPrefix(k, TravelTimePrefix)] = e
	}

	c.mu.Lock()
	maps.Copy(c.entries, loaded)
	c.mu.Unlock()

	zap.L().Debug("cache: loaded travel-time entries", zap.Int("entries", len(loaded)))
	return nil
}

// keyLock is a per-origin mutex shared by every caller holding or waiting on
// that origin. refs is guarded by TravelTimeCache.lockMu.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock serializes read-modify-write cycles for one origin key. Call the
// returned function to release. The lock entry is dropped once no caller
// holds or waits on it.
func (c *TravelTimeCache) Lock(key string) func() {
	c.lockMu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.lockMu.Unlock()
	}
}

// Get returns a copy of the entry for key and whether it is still fresh.
// found is false when no entry exists.
func (c *TravelTimeCache) Get(key string) (e Entry, fresh, found bool) {
	c.mu.RLock()
	stored, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return Entry{}, false, false
	}

	e = Entry{Results: maps.Clone(stored.Results), UpdatedAt: stored.UpdatedAt}
	fresh = c.nowFunc().Sub(e.UpdatedAt) < c.ttl
	if fresh {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, fresh, true
}

// Put replaces the entry for key and persists it. The in-memory entry is
// updated even when persistence fails.
func (c *TravelTimeCache) Put(ctx context.Context, key string, results map[string]model.TravelTime) error {
	e := Entry{Results: maps.Clone(results), UpdatedAt: c.nowFunc()}
	if e.Results == nil {
		e.Results = make(map[string]model.TravelTime)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	return c.persist(ctx, key, e)
}

// Merge adds results to the existing entry for key, refreshes its timestamp
// and persists it. A missing entry is created.
func (c *TravelTimeCache) Merge(ctx context.Context, key string, results map[string]model.TravelTime) (Entry, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	merged := make(map[string]model.TravelTime, len(e.Results)+len(results))
	if ok {
		maps.Copy(merged, e.Results)
	}
	maps.Copy(merged, results)
	e = Entry{Results: merged, UpdatedAt: c.nowFunc()}
	c.entries[key] = e
	c.mu.Unlock()

	out := Entry{Results: maps.Clone(merged), UpdatedAt: e.UpdatedAt}
	return out, c.persist(ctx, key, e)
}

// Sweep drops expired entries from memory and the store and returns how many
// were removed.
func (c *TravelTimeCache) Sweep(ctx context.Context) (int, error) {
	now := c.nowFunc()

	c.mu.Lock()
	var expired []string
	for k, e := range c.entries {
		if now.Sub(e.UpdatedAt) >= c.ttl {
			expired = append(expired, k)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, k := range expired {
		if err := c.store.Delete(ctx, TravelTimePrefix+k); err != nil {
			errs = append(errs, eris.Wrapf(err, "cache: delete %s", k))
		}
	}
	return len(expired), errors.Join(errs...)
}

// Stats returns cache statistics.
func (c *TravelTimeCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Entries: n, Hits: hits, Misses: misses, HitRate: rate}
}

func (c *TravelTimeCache) persist(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "cache: encode travel-time entry")
	}
	if err := c.store.Set(ctx, TravelTimePrefix+key, raw); err != nil {
		return eris.Wrapf(err, "cache: persist %s", key)
	}
	return nil
}
