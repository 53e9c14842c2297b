package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"junks-backend/internal/auth"
	"junks-backend/internal/blob"
	"junks-backend/internal/cache"
	"junks-backend/internal/config"
	"junks-backend/internal/docstore"
	"junks-backend/internal/icons"
	"junks-backend/internal/livequery"
	"junks-backend/internal/metrics"
	"junks-backend/internal/middleware"
	"junks-backend/internal/models"
	"junks-backend/internal/mutation"
	"junks-backend/internal/notifications"
	"junks-backend/internal/validation"
)

type BookingMailer interface {
	SendBookingReceived(ctx context.Context, booking models.Booking) (string, error)
	SendBookingStatus(ctx context.Context, booking models.Booking) (string, error)
}

type Server struct {
	Cfg       *config.Config
	Store     docstore.Store
	Live      *livequery.Manager
	Mutations *mutation.Dispatcher
	Feed      *notifications.Feed
	Icons     *icons.Service
	Uploader  *blob.Uploader
	Mailer    BookingMailer
	Val       *validation.Validator
	Log       *slog.Logger
	Cache     cache.Cache
	Auth      *auth.Manager
	Creds     auth.Credentials
	Verifier  auth.IDTokenVerifier
	Metrics   *metrics.Metrics

	// Heartbeat is the keep-alive interval of event streams.
	Heartbeat time.Duration
	Now       func() time.Time

	stopOnce sync.Once
	stopped  chan struct{}
	initStop sync.Once
}

// StopStreams ends every open event stream. It is meant for
// http.Server.RegisterOnShutdown, since Shutdown does not wait out
// long-lived responses by itself.
func (s *Server) StopStreams() {
	s.streamsDone()
	s.stopOnce.Do(func() { close(s.stopped) })
}

func (s *Server) streamsDone() <-chan struct{} {
	s.initStop.Do(func() { s.stopped = make(chan struct{}) })
	return s.stopped
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	log := s.Log
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	if admin, ok := middleware.AdminFromContext(r.Context()); ok {
		log = log.With(slog.String("admin", admin.Subject))
	}
	return log
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) location() *time.Location {
	if s.Cfg != nil && s.Cfg.Timezone != nil {
		return s.Cfg.Timezone
	}
	return time.UTC
}

func (s *Server) cacheTTL() time.Duration {
	if s.Cfg == nil || s.Cfg.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.Cfg.CacheTTLSeconds) * time.Second
}

func (s *Server) heartbeat() time.Duration {
	if s.Heartbeat > 0 {
		return s.Heartbeat
	}
	return 25 * time.Second
}

func (s *Server) invalidate(ctx context.Context, keys ...string) {
	if s.Cache == nil {
		return
	}
	for _, key := range keys {
		if err := s.Cache.Delete(ctx, key); err != nil {
			s.Log.Warn("cache invalidate: failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
