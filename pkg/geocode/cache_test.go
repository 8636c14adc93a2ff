package geocode_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/cache"
	"github.com/sells-group/carpark-cli/internal/store"
	"github.com/sells-group/carpark-cli/pkg/geocode"
	"github.com/sells-group/carpark-cli/pkg/geocode/mocks"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var marina = &geocode.GeocodingResult{
	Lat:        1.28395,
	Lng:        103.86030,
	Address:    "10 BAYFRONT AVENUE MARINA BAY SANDS SINGAPORE 018956",
	PostalCode: "018956",
	Building:   "MARINA BAY SANDS",
}

func TestCachedClient_SecondSearchServedFromCache(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Search", mock.Anything, "Marina Bay").Return(marina, nil).Once()

	s := store.NewMemory()
	c := geocode.NewCachedClient(inner, s, time.Hour)

	first, err := c.Search(context.Background(), "  Marina   Bay ")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "marina bay")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = s.Get(context.Background(), geocode.CacheKey("marina bay", geocode.QuerySearch))
	assert.NoError(t, err)
}

func TestCachedClient_PostalKey(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Search", mock.Anything, "018956").Return(marina, nil).Once()

	s := store.NewMemory()
	c := geocode.NewCachedClient(inner, s, time.Hour)
	_, err := c.Search(context.Background(), "018956")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "geocode:postal:018956")
	assert.NoError(t, err)
}

func TestCachedClient_ErrorsNotCached(t *testing.T) {
	inner := mocks.NewMockClient(t)
	notFound := &geocode.Error{Kind: geocode.KindNotFound, Err: geocode.ErrNotFound}
	inner.On("Search", mock.Anything, "atlantis").Return(nil, notFound).Twice()

	c := geocode.NewCachedClient(inner, store.NewMemory(), time.Hour)
	for range 2 {
		_, err := c.Search(context.Background(), "atlantis")
		assert.Equal(t, geocode.KindNotFound, geocode.Classify(err))
	}
}

func TestCachedClient_ExpiryRefetches(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	inner := mocks.NewMockClient(t)
	inner.On("Search", mock.Anything, "orchard").Return(marina, nil).Twice()

	c := geocode.NewCachedClient(inner, store.NewMemory(), time.Hour, cache.WithClock(clk.Now))
	_, err := c.Search(context.Background(), "orchard")
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)
	_, err = c.Search(context.Background(), "orchard")
	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "Search", 1)

	clk.Advance(31 * time.Minute)
	_, err = c.Search(context.Background(), "orchard")
	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "Search", 2)
}

func TestCachedClient_EmptyQueryPassesThrough(t *testing.T) {
	inner := mocks.NewMockClient(t)
	invalid := &geocode.Error{Kind: geocode.KindInvalidQuery}
	inner.On("Search", mock.Anything, "   ").Return(nil, invalid).Once()

	c := geocode.NewCachedClient(inner, store.NewMemory(), time.Hour)
	_, err := c.Search(context.Background(), "   ")
	assert.Equal(t, geocode.KindInvalidQuery, geocode.Classify(err))
}

type readOnlyStore struct {
	store.Store
}

func (readOnlyStore) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestCachedClient_WriteFailureStillReturns(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Search", mock.Anything, "bugis").Return(marina, nil).Twice()

	c := geocode.NewCachedClient(inner, readOnlyStore{Store: store.NewMemory()}, time.Hour)
	for range 2 {
		res, err := c.Search(context.Background(), "bugis")
		require.NoError(t, err)
		assert.Equal(t, "018956", res.PostalCode)
	}
}

func TestCachedClient_Sweep(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	inner := mocks.NewMockClient(t)
	inner.On("Search", mock.Anything, mock.Anything).Return(marina, nil)

	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), "tt:1.300,103.800", []byte(`{"results":{}}`)))

	c := geocode.NewCachedClient(inner, s, time.Hour, cache.WithClock(clk.Now))
	_, _ = c.Search(context.Background(), "bugis")
	_, _ = c.Search(context.Background(), "018956")

	clk.Advance(2 * time.Hour)
	n, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(context.Background(), "tt:1.300,103.800")
	assert.NoError(t, err, "entries outside the geocode prefix are untouched")
}
