package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"junks-backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{ uid string }

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if token != "firebase-token" {
		return auth.Identity{}, errors.New("bad token")
	}
	return auth.Identity{UID: s.uid, Email: "owner@junks.co.za"}, nil
}

func okHandler(t *testing.T, wantMethod string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := AdminFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantMethod, admin.Method)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAdminAuth(t *testing.T) {
	manager := &auth.Manager{Secret: []byte("secret"), AccessTTL: time.Minute, Issuer: "junks-backend"}
	token, err := manager.NewAccessToken("admin", auth.RoleAdmin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		method string
		status int
	}{
		{"api key", func(r *http.Request) { r.Header.Set("X-Admin-Key", "key") }, "api_key", http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: token}) }, "session", http.StatusNoContent},
		{"bearer session", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "session", http.StatusNoContent},
		{"bearer id token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer firebase-token") }, "id_token", http.StatusNoContent},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-Admin-Key", "nope") }, "", http.StatusUnauthorized},
		{"nothing", func(r *http.Request) {}, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := AdminAuth("key", manager, stubVerifier{uid: "uid-1"})(okHandler(t, tc.method))
			req := httptest.NewRequest(http.MethodGet, "/admin/live/bookings", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAdminAuthNotConfigured(t *testing.T) {
	h := AdminAuth("", nil, nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.True(t, rl.Allow("10.0.0.2:/api/contact"), "other clients have their own bucket")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "0b5f1c1e-3f7a-4a39-9d4e-1a2b3c4d5e6f")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "0b5f1c1e-3f7a-4a39-9d4e-1a2b3c4d5e6f", seen)
}

func TestRequireStore(t *testing.T) {
	h := RequireStore(errors.New("store not configured: set MONGO_URI"))(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "set MONGO_URI")

	passthrough := RequireStore(nil)(http.NotFoundHandler())
	rec = httptest.NewRecorder()
	passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS("https://junks.co.za, http://localhost:3000")(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
	req.Header.Set("Origin", "https://junks.co.za")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://junks.co.za", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
