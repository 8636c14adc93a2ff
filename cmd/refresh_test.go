//go:build !integration

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/feed"
	"github.com/sells-group/carpark-cli/internal/fetcher"
)

const availabilityBody = `{"items":[{"timestamp":"2026-03-02T16:00:00+08:00","carpark_data":[
	{"carpark_number":"ACB","update_datetime":"2026-03-02T15:58:00","carpark_info":[
		{"lot_type":"C","lots_available":"99","total_lots":"583"}]}]}]}`

const infoBody = `{"success":true,"result":{"records":[
	{"car_park_no":"ACB","address":"BLK 270/271 ALBERT CENTRE BASEMENT CAR PARK",
	 "x_coord":"30314.7936","y_coord":"31490.4942","car_park_type":"BASEMENT CAR PARK"}]}}`

func feedEnv(t *testing.T, info, avail http.HandlerFunc) *appEnv {
	t.Helper()
	infoSrv := httptest.NewServer(info)
	t.Cleanup(infoSrv.Close)
	availSrv := httptest.NewServer(avail)
	t.Cleanup(availSrv.Close)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:     5 * time.Second,
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
	})
	return &appEnv{
		Fetcher: f,
		Feeds:   feed.NewClient(f, feed.Config{InfoURL: infoSrv.URL, AvailabilityURL: availSrv.URL, PageSize: 100}),
	}
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body)) //nolint:errcheck
	}
}

func TestRefreshDataset_InfoFeedDownKeepsDataset(t *testing.T) {
	env := feedEnv(t,
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
		respond(availabilityBody),
	)
	ds := testDataset()

	err := refreshDataset(context.Background(), env, ds, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no facilities")
	assert.Len(t, ds.All(), 3)
	assert.Equal(t, 3, ds.Status().Facilities)
}

func TestRefreshDataset_BothFeedsDownKeepsDataset(t *testing.T) {
	down := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }
	env := feedEnv(t, down, down)
	ds := testDataset()

	require.Error(t, refreshDataset(context.Background(), env, ds, ""))
	assert.Len(t, ds.All(), 3)
}

func TestRefreshDataset_ReplacesOnSuccess(t *testing.T) {
	env := feedEnv(t, respond(infoBody), respond(availabilityBody))
	ds := testDataset()

	require.NoError(t, refreshDataset(context.Background(), env, ds, ""))
	all := ds.All()
	require.Len(t, all, 1)
	assert.Equal(t, "ACB", all[0].ID)
	assert.Equal(t, 99, all[0].AvailableLots)
}
