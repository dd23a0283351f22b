// Package telemetry centralizes Prometheus metrics for the archiver and its HTTP surface.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_fetch_attempts_total",
			Help: "Total fetch attempts, labeled by site and request kind.",
		},
		[]string{"site", "kind"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_fetch_retries_total",
			Help: "Total fetch retries after transient failures, labeled by site.",
		},
		[]string{"site"},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_fetch_errors_total",
			Help: "Total failed fetches after retry, labeled by site and error class.",
		},
		[]string{"site", "class"},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_rate_limit_hits_total",
			Help: "Total number of HTTP 429 responses received.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archiver_rate_limit_delays_seconds",
			Help:    "Histogram of politeness wait durations per host.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	assetsCachedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_assets_cached_total",
			Help: "Assets written to the cache, labeled by mime class.",
		},
		[]string{"class"},
	)

	assetsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_assets_skipped_total",
			Help: "Assets not fetched, labeled by mime class and reason.",
		},
		[]string{"class", "reason"},
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
)

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// --- HELPER FUNCTIONS ---

// SanitizeSite extracts the hostname from a URL for use as a label value.
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

// ObserveFetchAttempt records one outbound request attempt.
func ObserveFetchAttempt(site string, kind string) {
	fetchAttemptsTotal.WithLabelValues(SanitizeSite(site), kind).Inc()
}

// ObserveFetchRetry records a retry scheduled after a transient failure.
func ObserveFetchRetry(site string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveFetchError records a fetch that failed for good.
func ObserveFetchError(site string, class string) {
	fetchErrorsTotal.WithLabelValues(SanitizeSite(site), class).Inc()
}

// ObserveRateLimitHit records an HTTP 429 response.
func ObserveRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveAssetCached records an asset written to the cache.
func ObserveAssetCached(class string) {
	assetsCachedTotal.WithLabelValues(class).Inc()
}

// ObserveAssetSkipped records an asset left remote (failed, blocked, or
// suppressed by flags).
func ObserveAssetSkipped(class string, reason string) {
	assetsSkippedTotal.WithLabelValues(class, reason).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
