package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeocodeCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeopt_geocode_cache_hits_total",
		Help: "Geocode cache hits by outcome (ok|failed)",
	}, []string{"outcome"})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routeopt_geocode_cache_misses_total",
		Help: "Geocode cache misses",
	})
	GeocodeProviderAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeopt_geocode_provider_attempts_total",
		Help: "Geocoding provider calls by outcome (ok|no_match|error)",
	}, []string{"outcome"})
	GeocodeProviderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "routeopt_geocode_provider_duration_ms",
		Help:    "Geocoding provider call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	OptimizerRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeopt_optimizer_runs_total",
		Help: "Completed optimizations by optimizer (local|remote)",
	}, []string{"optimizer"})
	RemoteFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routeopt_remote_fallbacks_total",
		Help: "Remote optimizer failures that fell back to local, by kind",
	}, []string{"kind"})
	PipelineDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "routeopt_pipeline_duration_ms",
		Help:    "Route pipeline run duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 500, 1000, 5000, 15000, 60000},
	})
	CachePurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routeopt_geocode_cache_purged_total",
		Help: "Expired geocode cache entries removed by the purge job",
	})
)

func init() {
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheMissesTotal)
	prometheus.MustRegister(GeocodeProviderAttemptsTotal)
	prometheus.MustRegister(GeocodeProviderDurationMs)
	prometheus.MustRegister(OptimizerRunsTotal)
	prometheus.MustRegister(RemoteFallbacksTotal)
	prometheus.MustRegister(PipelineDurationMs)
	prometheus.MustRegister(CachePurgedTotal)
}

// Handler exposes the registered metrics for scraping on /metrics.
func Handler() http.Handler { return promhttp.Handler() }
