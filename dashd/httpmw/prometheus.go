package httpmw

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/livedash/livedash/dashd/httpapi"
)

// Prometheus records request counts and latencies by route pattern. Event
// streams are tracked separately since their latency is the connection
// lifetime.
func Prometheus(register prometheus.Registerer) func(http.Handler) http.Handler {
	factory := promauto.With(register)
	requestsProcessed := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livedash",
		Subsystem: "api",
		Name:      "requests_processed_total",
		Help:      "The total number of processed API requests",
	}, []string{"code", "method", "path"})
	requestsConcurrent := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "livedash",
		Subsystem: "api",
		Name:      "concurrent_requests",
		Help:      "The number of concurrent API requests.",
	})
	streamsConcurrent := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "livedash",
		Subsystem: "api",
		Name:      "concurrent_event_streams",
		Help:      "The total number of concurrent event streams.",
	})
	streamsDist := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livedash",
		Subsystem: "api",
		Name:      "event_stream_durations_seconds",
		Help:      "Event stream duration distribution of requests in seconds.",
		Buckets: []float64{
			0.001, // Immediate error
			1,
			30,
			60,
			300,
			1800,
			3600,
		},
	}, []string{"path"})
	requestsDist := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livedash",
		Subsystem: "api",
		Name:      "request_latencies_seconds",
		Help:      "Latency distribution of requests in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.500, 1, 5, 10, 30},
	}, []string{"method", "path"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				start  = time.Now()
				method = r.Method
			)

			sw, ok := w.(*httpapi.StatusWriter)
			if !ok {
				panic("dev error: http.ResponseWriter is not *httpapi.StatusWriter")
			}

			var (
				dist     *prometheus.HistogramVec
				distOpts []string
			)
			if httpapi.IsEventStream(r) {
				streamsConcurrent.Inc()
				defer streamsConcurrent.Dec()

				dist = streamsDist
			} else {
				requestsConcurrent.Inc()
				defer requestsConcurrent.Dec()

				dist = requestsDist
				distOpts = []string{method}
			}

			next.ServeHTTP(w, r)

			path := routePattern(r)
			distOpts = append(distOpts, path)
			statusStr := strconv.Itoa(sw.Status)

			requestsProcessed.WithLabelValues(statusStr, method, path).Inc()
			dist.WithLabelValues(distOpts...).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern bounds label cardinality: anything the router did not match
// falls through to the site handler and is reported as "/*".
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "/*"
	}
	pattern := strings.TrimSuffix(rctx.RoutePattern(), "/")
	if pattern == "" {
		return "/*"
	}
	return pattern
}
