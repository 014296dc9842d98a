package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS applies the browser origin policy. With no configured origins the
// middleware is a no-op and cross-origin calls fail in the browser.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, IdempotentReplayedHeader, "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
