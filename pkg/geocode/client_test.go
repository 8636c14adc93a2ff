package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/resilience"
)

const marinaBayJSON = `{
	"found": 2,
	"totalNumPages": 1,
	"pageNum": 1,
	"results": [
		{
			"SEARCHVAL": "MARINA BAY SANDS",
			"BLK_NO": "10",
			"ROAD_NAME": "BAYFRONT AVENUE",
			"BUILDING": "MARINA BAY SANDS",
			"ADDRESS": "10 BAYFRONT AVENUE MARINA BAY SANDS SINGAPORE 018956",
			"POSTAL": "018956",
			"X": "30381.1007417506",
			"Y": "29448.6988186091",
			"LATITUDE": "1.28395408741306",
			"LONGITUDE": "103.860297935895"
		},
		{
			"SEARCHVAL": "MARINA BAY SANDS CASINO",
			"ADDRESS": "SECOND HIT",
			"POSTAL": "018956",
			"LATITUDE": "1.2834",
			"LONGITUDE": "103.8607"
		}
	]
}`

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base := []Option{WithBaseURL(srv.URL + "/"), WithRateLimit(0), WithRetry(fastRetry())}
	return NewClient(append(base, opts...)...)
}

func TestSearch_TopResult(t *testing.T) {
	var gotQuery atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		assert.Equal(t, "Y", r.URL.Query().Get("returnGeom"))
		assert.Equal(t, "Y", r.URL.Query().Get("getAddrDetails"))
		gotQuery.Store(r.URL.Query().Get("searchVal"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, marinaBayJSON)
	})

	res, err := c.Search(context.Background(), `  Marina Bay "Sands" `)
	require.NoError(t, err)
	assert.Equal(t, "Marina Bay Sands", gotQuery.Load())
	assert.Equal(t, "018956", res.PostalCode)
	assert.Equal(t, "MARINA BAY SANDS", res.Building)
	assert.Equal(t, "10 BAYFRONT AVENUE MARINA BAY SANDS SINGAPORE 018956", res.Address)
	assert.InDelta(t, 1.28395, res.Lat, 1e-5)
}

func TestSearch_NoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"found":0,"totalNumPages":0,"pageNum":1,"results":[]}`)
	})

	res, err := c.Search(context.Background(), "nowhere in particular")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, Classify(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_TopResultOutsideRegion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"found":2,"results":[
			{"ADDRESS":"KUALA LUMPUR","LATITUDE":"3.139","LONGITUDE":"101.6869"},
			{"ADDRESS":"ORCHARD","LATITUDE":"1.3048","LONGITUDE":"103.8318"}
		]}`)
	})

	// Lower-ranked hits are never promoted.
	_, err := c.Search(context.Background(), "KL")
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestSearch_EmptyQuery(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, marinaBayJSON)
	})

	_, err := c.Search(context.Background(), ` <>"; `)
	assert.Equal(t, KindInvalidQuery, Classify(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearch_RateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "018956")
	assert.Equal(t, KindRateLimited, Classify(err))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, UserMessage(KindRateLimited), UserMessage(Classify(err)))
}

func TestSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, marinaBayJSON)
	})

	res, err := c.Search(context.Background(), "marina bay")
	require.NoError(t, err)
	assert.Equal(t, "018956", res.PostalCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Search(context.Background(), "marina bay")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results": [`)
	})

	_, err := c.Search(context.Background(), "marina bay")
	require.Error(t, err)
	var ge *Error
	assert.ErrorAs(t, err, &ge)
}

func TestSearch_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}), WithRetry(resilience.RetryConfig{MaxAttempts: 1}))

	_, err := c.Search(context.Background(), "marina bay")
	assert.Equal(t, KindTimeout, Classify(err))
}

func TestSearch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url), WithRateLimit(0), WithRetry(resilience.RetryConfig{MaxAttempts: 1}))
	_, err := c.Search(context.Background(), "marina bay")
	assert.Equal(t, KindNetwork, Classify(err))
}
