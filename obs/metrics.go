/*
Package obs holds observability helpers: Prometheus metrics and the HTTP
instrumentation middleware.

Metrics registration happens once via Init(); handlers and domain code then
record through the package-level collectors.
*/
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics
var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and result.",
		},
		[]string{"op", "result"},
	)

	conflictRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_conflict_retries_total",
		Help: "Transactions restarted after a transient write conflict.",
	})

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_invalidations_total",
			Help: "Post-commit invalidation signals by entity kind.",
		},
		[]string{"kind"},
	)

	recomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recompute_all_duration_seconds",
		Help:    "Full reconciliation pass duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		operationsTotal, conflictRetriesTotal, invalidationsTotal,
		recomputeDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Operation records the outcome of a domain operation. result is "ok" or
// "error".
func Operation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}

// ConflictRetry counts one transaction restart.
func ConflictRetry() { conflictRetriesTotal.Inc() }

// Invalidation counts one post-commit invalidation signal.
func Invalidation(kind string) { invalidationsTotal.WithLabelValues(kind).Inc() }

// ObserveRecompute records the duration of a full reconciliation pass.
func ObserveRecompute(d time.Duration) { recomputeDuration.Observe(d.Seconds()) }

// Instrument wraps next with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
