package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/aurashift/internal/observability"
)

// Metrics records request count and latency per route pattern. Using the
// pattern ("/api/activities/{id}") instead of the path keeps the label set
// bounded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		observability.RecordRequest(r.Method, route, wrapped.statusCode, time.Since(start))
	})
}
