package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// CORS creates a CORS middleware
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := origin != "" && (lo.Contains(allowedOrigins, origin) || lo.Contains(allowedOrigins, "*"))

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}

			// Handle preflight request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ParseOrigins parses comma-separated origins string
func ParseOrigins(originsStr string) []string {
	origins := lo.Map(strings.Split(originsStr, ","), func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	})
	return lo.Compact(origins)
}

// OriginAllowed reports whether origin may open a WebSocket connection.
// Requests without an Origin header come from non-browser clients and are allowed.
func OriginAllowed(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin) {
			return true
		}
		// same-origin pages are always allowed
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}
