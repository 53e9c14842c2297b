package middleware

import (
	"net/http"

	"junks-backend/internal/transport"
)

// RequireStore answers every request with 503 while the document store is
// not configured, carrying the remediation in the details.
func RequireStore(configErr error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if configErr == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			transport.WriteError(w, http.StatusServiceUnavailable, "store not configured", map[string]string{
				"remediation": configErr.Error(),
			})
		})
	}
}
