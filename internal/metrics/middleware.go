package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// maxBodyBytes caps request bodies; no endpoint reads one
const maxBodyBytes = 1 << 10

var (
	// HTTPRequestDuration tracks control server latency per route, method and status
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal counts control server requests per route, method and status
	HTTPRequestsTotal *prometheus.CounterVec
)

func initHTTPMetrics() {
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audiodedupe_http_request_duration_seconds",
		Help:    "Duration of control server requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler", "method", "status"})

	HTTPRequestsTotal = NewCounterVec(
		"audiodedupe_http_requests_total",
		"Total number of control server requests.",
		[]string{"handler", "method", "status"},
	)
}

func registerHTTPMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// instrument records duration and count per route template
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if HTTPRequestDuration == nil || HTTPRequestsTotal == nil {
			return
		}

		handler := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				handler = tpl
			}
		}
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(handler, r.Method, status).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(handler, r.Method, status).Inc()
	})
}

// limitBody caps the size of POST bodies
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
