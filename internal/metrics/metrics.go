// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	catalogProbesTotal           *prometheus.CounterVec
	catalogFetchBytesTotal       *prometheus.CounterVec
	catalogRecordsAddedTotal     prometheus.Counter
	catalogCheckpointsTotal      *prometheus.CounterVec
	catalogCurrentID             prometheus.Gauge
	catalogKnownRecords          prometheus.Gauge
	catalogUpperBound            prometheus.Gauge
	catalogRateLimitDelaySeconds *prometheus.HistogramVec
	catalogRobotsFallbackTotal   prometheus.Counter
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		catalogProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_probes_total",
				Help: "Total number of item probes, labeled by phase and result status.",
			},
			[]string{"phase", "status"},
		)

		catalogFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		catalogRecordsAddedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_records_added_total",
				Help: "Total number of new records added to the table during this run.",
			},
		)

		catalogCheckpointsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_checkpoints_total",
				Help: "Total number of checkpoints, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		catalogCurrentID = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_current_id",
				Help: "The id the crawl driver is currently examining.",
			},
		)

		catalogKnownRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_known_records",
				Help: "Number of records held in the table.",
			},
		)

		catalogUpperBound = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_upper_bound",
				Help: "Estimated upper bound of the id space.",
			},
		)

		catalogRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
			},
			[]string{"limiter"},
		)

		catalogRobotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_robots_fallback_total",
				Help: "Total robots.txt fetches that timed out and were treated as allow-all.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveProbe counts one probe result. Phase is "estimate" or "crawl".
func ObserveProbe(phase, status string) {
	Init()
	catalogProbesTotal.WithLabelValues(phase, status).Inc()
}

// ObserveFetch records the bytes fetched from a site.
func ObserveFetch(site string, bytesFetched int) {
	Init()
	if bytesFetched > 0 {
		catalogFetchBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveRecordAdded counts a new record and updates the table size gauge.
func ObserveRecordAdded(tableSize int) {
	Init()
	catalogRecordsAddedTotal.Inc()
	catalogKnownRecords.Set(float64(tableSize))
}

// SetKnownRecords sets the table size gauge, e.g. after resume.
func SetKnownRecords(n int) {
	Init()
	catalogKnownRecords.Set(float64(n))
}

// SetCurrentID sets the id being examined.
func SetCurrentID(id int) {
	Init()
	catalogCurrentID.Set(float64(id))
}

// SetUpperBound records the estimator result.
func SetUpperBound(bound int) {
	Init()
	catalogUpperBound.Set(float64(bound))
}

// ObserveCheckpoint counts a checkpoint by outcome: "ok", "locked" or "failed".
func ObserveCheckpoint(outcome string) {
	Init()
	catalogCheckpointsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(limiter string, duration time.Duration) {
	Init()
	catalogRateLimitDelaySeconds.WithLabelValues(limiter).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt fetch that was assumed permissive.
func ObserveRobotsFallback() {
	Init()
	catalogRobotsFallbackTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
