package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carpark"

var (
	RoutingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_requests_total",
		Help:      "Per-destination routing lookups by outcome (success, failure, skipped).",
	}, []string{"outcome"})
	RoutingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "routing_duration_seconds",
		Help:      "Latency of routing service calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	BreakerTripsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_breaker_trips_total",
		Help:      "Enrichment calls whose breaker tripped, by reason.",
	}, []string{"reason"})
	FallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traveltime_fallbacks_total",
		Help:      "Destinations answered with the geodesic estimate.",
	})
	TravelTimeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traveltime_cache_total",
		Help:      "Cached enrichment lookups by result (hit, partial, miss).",
	}, []string{"result"})
	FeedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_records_total",
		Help:      "Records downloaded per feed.",
	}, []string{"feed"})
	FacilitiesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "facilities",
		Help:      "Facilities in the current merged dataset.",
	})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_requests_total",
		Help:      "Geocoding lookups by error kind (none on success).",
	}, []string{"kind"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route and status.",
	}, []string{"route", "status"})
	HTTPDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP API latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(
		RoutingRequestsTotal,
		RoutingDurationSeconds,
		BreakerTripsTotal,
		FallbacksTotal,
		TravelTimeCacheTotal,
		FeedRecordsTotal,
		FacilitiesGauge,
		GeocodeRequestsTotal,
		HTTPRequestsTotal,
		HTTPDurationSeconds,
	)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
