package middleware

import (
	"net/http"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/server/metrics"
)

// Metrics записывает количество и длительность запросов.
// Маршрут берётся из шаблона ServeMux, чтобы не плодить метки по каждому пути
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
