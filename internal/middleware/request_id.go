package middleware

import (
	"net/http"

	"chat-relay/internal/observability"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogging attaches the chi request id to the logging context.
// It must run after chimiddleware.RequestID.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(observability.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
