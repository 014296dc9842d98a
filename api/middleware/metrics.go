package middleware

import (
	"net/http"
	"time"

	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

// Metrics records request counts and latency labelled by the matched route
// pattern. Unmatched paths share one label so scanners cannot blow up the
// series count.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, routePattern(r), rec.code(), time.Since(start))
		})
	}
}
