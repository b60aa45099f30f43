// Package metrics exposes Prometheus collectors for the crawler.
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

// Fetch outcome labels.
const (
	StatusFetched = "fetched"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var (
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerActiveFetches          prometheus.Gauge
	crawlerRoundsTotal            prometheus.Counter
	crawlerRoundBatchSize         prometheus.Histogram
	crawlerRoundDurationSeconds   prometheus.Histogram
	crawlerPromotionsTotal        *prometheus.CounterVec
	crawlerPublishTotal           *prometheus.CounterVec
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerRunDurationSeconds     prometheus.Histogram
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of dispatched URLs, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of body bytes written to the staging directory, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerActiveFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_fetches",
				Help: "Number of fetch tasks currently running.",
			},
		)

		crawlerRoundsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_rounds_total",
				Help: "Total number of breadth-first rounds completed.",
			},
		)

		crawlerRoundBatchSize = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_round_batch_size",
				Help:    "Histogram of URLs dispatched per round.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
		)

		crawlerRoundDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_round_duration_seconds",
				Help:    "Histogram of round wall times.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		crawlerPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_promotions_total",
				Help: "Total number of files handed to durable storage, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerPublishTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_publish_total",
				Help: "Total number of promotion events published, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_run_duration_seconds",
				Help:    "Histogram of crawl run wall times.",
				Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200},
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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
	return promhttp.Handler()
}

// ObserveFetch records the outcome of one dispatched URL.
func ObserveFetch(rawURL, status string, bytesWritten int64) {
	Init()
	site := SanitizeSite(rawURL)
	crawlerFetchesTotal.WithLabelValues(site, status).Inc()
	if bytesWritten > 0 {
		crawlerBytesTotal.WithLabelValues(site).Add(float64(bytesWritten))
	}
}

// IncActiveFetches increments the active fetch gauge.
func IncActiveFetches() {
	Init()
	crawlerActiveFetches.Inc()
}

// DecActiveFetches decrements the active fetch gauge.
func DecActiveFetches() {
	Init()
	crawlerActiveFetches.Dec()
}

// ObserveRound records a completed round.
func ObserveRound(batchSize int, duration time.Duration) {
	Init()
	crawlerRoundsTotal.Inc()
	crawlerRoundBatchSize.Observe(float64(batchSize))
	crawlerRoundDurationSeconds.Observe(duration.Seconds())
}

// ObservePromotion counts files promoted, skipped or failed.
func ObservePromotion(status string, n int) {
	Init()
	if n > 0 {
		crawlerPromotionsTotal.WithLabelValues(status).Add(float64(n))
	}
}

// ObservePublish counts one promotion event publish attempt.
func ObservePublish(status string) {
	Init()
	crawlerPublishTotal.WithLabelValues(status).Inc()
}

// ObserveRun records a finished crawl run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	crawlerRunsTotal.WithLabelValues(status).Inc()
	crawlerRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
