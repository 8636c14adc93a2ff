// Package monitoring exposes prometheus metrics and runs the background
// dataset health checks.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/carpark-cli/internal/cache"
)

// DatasetStatus describes the merged facility set currently being served.
type DatasetStatus struct {
	Facilities       int
	WithAvailability int
	AvailableLots    int
	RefreshedAt      time.Time
}

// DatasetSource reports the state of the served dataset.
type DatasetSource interface {
	Status() DatasetStatus
}

// CacheSource reports travel-time cache statistics.
type CacheSource interface {
	Stats() cache.Stats
}

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	Facilities       int       `json:"facilities"`
	WithAvailability int       `json:"with_availability"`
	AvailableLots    int       `json:"available_lots"`
	RefreshedAt      time.Time `json:"refreshed_at"`
	DataAgeMins      float64   `json:"data_age_mins"`

	CacheEntries int     `json:"cache_entries"`
	CacheLookups int64   `json:"cache_lookups"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers a snapshot from the dataset and the travel-time cache.
type Collector struct {
	dataset DatasetSource
	cache   CacheSource
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector. cache may be nil.
func NewCollector(dataset DatasetSource, cache CacheSource) *Collector {
	return &Collector{dataset: dataset, cache: cache, nowFunc: time.Now}
}

// Collect gathers a snapshot of system metrics and refreshes the facility gauge.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "monitoring: collect")
	}
	if c.dataset == nil {
		return nil, eris.New("monitoring: no dataset source")
	}

	now := c.nowFunc().UTC()
	st := c.dataset.Status()
	snap := &MetricsSnapshot{
		Facilities:       st.Facilities,
		WithAvailability: st.WithAvailability,
		AvailableLots:    st.AvailableLots,
		RefreshedAt:      st.RefreshedAt,
		CollectedAt:      now,
	}
	if !st.RefreshedAt.IsZero() {
		snap.DataAgeMins = now.Sub(st.RefreshedAt).Minutes()
	}

	if c.cache != nil {
		cs := c.cache.Stats()
		snap.CacheEntries = cs.Entries
		snap.CacheLookups = cs.Hits + cs.Misses
		snap.CacheHitRate = cs.HitRate
	}

	FacilitiesGauge.Set(float64(st.Facilities))
	return snap, nil
}
