package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMetrics records HTTPRequestsTotal and HTTPRequestDuration for every
// request the introspection API serves. A nil Metrics makes the middleware
// a no-op rather than panicking, so an api.Server built without Metrics
// (as the router tests do) still serves.
func HTTPMetrics(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.Status())
			endpoint := r.URL.Path
			m.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
		})
	}
}

// InFlightRequests tracks HTTPRequestsInFlight across the lifetime of each
// request.
func InFlightRequests(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
