package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ibrahimyu/promoreel/internal/metrics"
)

// Metrics counts requests and 5xx responses per method and route pattern.
// The chi route pattern is used instead of the raw path so job ids do not
// explode label cardinality.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			m.HTTPRequests.WithLabelValues(r.Method, path).Inc()
			if rec.status >= http.StatusInternalServerError {
				m.HTTPErrors.WithLabelValues(r.Method, path).Inc()
			}
		})
	}
}
