package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"junks-backend/internal/auth"
	"junks-backend/internal/transport"
)

type adminKey struct{}

// Admin describes how the current request authenticated.
type Admin struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
	Method  string `json:"method"`
}

func AdminFromContext(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminKey{}).(Admin)
	return a, ok
}

func WithAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminKey{}, a)
}

// Authenticate resolves the admin behind a request from the X-Admin-Key
// header, the access cookie, or a bearer token (session JWT or identity
// provider ID token).
func Authenticate(r *http.Request, apiKey string, manager *auth.Manager, verifier auth.IDTokenVerifier) (Admin, bool) {
	if key := r.Header.Get("X-Admin-Key"); apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
		return Admin{Subject: "api-key", Method: "api_key"}, true
	}

	if manager != nil {
		if cookie, err := r.Cookie(auth.AccessCookie); err == nil && cookie.Value != "" {
			if claims, err := manager.ParseAccess(cookie.Value); err == nil && claims.Role == auth.RoleAdmin {
				return Admin{Subject: claims.Subject, Method: "session"}, true
			}
		}
	}

	bearer := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if bearer == "" || bearer == r.Header.Get("Authorization") {
		return Admin{}, false
	}
	if manager != nil {
		if claims, err := manager.ParseAccess(bearer); err == nil && claims.Role == auth.RoleAdmin {
			return Admin{Subject: claims.Subject, Method: "session"}, true
		}
	}
	if verifier != nil {
		if id, err := verifier.Verify(r.Context(), bearer); err == nil {
			return Admin{Subject: id.UID, Email: id.Email, Method: "id_token"}, true
		}
	}
	return Admin{}, false
}

func AdminAuth(apiKey string, manager *auth.Manager, verifier auth.IDTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" && manager == nil && verifier == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			admin, ok := Authenticate(r, apiKey, manager, verifier)
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
		})
	}
}
