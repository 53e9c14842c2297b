package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"junks-backend/internal/transport"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimiter keeps a token bucket per client and path. Idle buckets expire
// after one window.
type RateLimiter struct {
	limit    int
	every    rate.Limit
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:    limit,
		every:    rate.Every(window / time.Duration(limit)),
		limiters: expirable.NewLRU[string, *rate.Limiter](10000, nil, window),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.every, rl.limit)
		rl.limiters.Add(key, l)
	}
	return l.Allow()
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r) + ":" + r.URL.Path
		if !rl.Allow(key) {
			transport.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
