package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"junks-backend/internal/docstore"
	"junks-backend/internal/httpx"
	"junks-backend/internal/lifecycle"
	"junks-backend/internal/models"
	"junks-backend/internal/projection"
	"junks-backend/internal/transport"
)

const maxLiveLimit = 500

func (s *Server) AdminLiveServices(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "services", func(scope *lifecycle.Scope) projection.Section {
		return s.servicesSection(scope, servicesQuery)
	})
}

func (s *Server) AdminLiveTestimonials(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "testimonials", func(scope *lifecycle.Scope) projection.Section {
		return s.testimonialsSection(scope, testimonialsQuery)
	})
}

// AdminLiveBookings streams bookings, newest first. An optional limit
// query parameter caps the list.
func (s *Server) AdminLiveBookings(w http.ResponseWriter, r *http.Request) {
	q, ok := s.limitedQuery(w, r, bookingsQuery)
	if !ok {
		return
	}
	s.stream(w, r, "bookings", func(scope *lifecycle.Scope) projection.Section {
		return projection.New(s.Live.Subscribe(scope.Context(), q), models.ParseBooking, s.Log)
	})
}

func (s *Server) AdminLiveMessages(w http.ResponseWriter, r *http.Request) {
	q, ok := s.limitedQuery(w, r, messagesQuery)
	if !ok {
		return
	}
	s.stream(w, r, "messages", func(scope *lifecycle.Scope) projection.Section {
		return projection.New(s.Live.Subscribe(scope.Context(), q), models.ParseMessage, s.Log)
	})
}

func (s *Server) limitedQuery(w http.ResponseWriter, r *http.Request, q docstore.Query) (docstore.Query, bool) {
	limit, err := httpx.ParseLimit(r.URL.Query(), 0, maxLiveLimit)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid limit", map[string]string{"limit": "positive integer"})
		return q, false
	}
	q.Limit = limit
	return q, true
}

func (s *Server) AdminLiveSettings(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "settings", s.settingsSection)
}

// AdminLiveDashboard streams the five latest bookings and messages along
// with the total count of each.
func (s *Server) AdminLiveDashboard(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "dashboard", func(scope *lifecycle.Scope) projection.Section {
		recentBookings := bookingsQuery
		recentBookings.Limit = 5
		recentMessages := messagesQuery
		recentMessages.Limit = 5

		return projection.NewBoard().
			Add("recentBookings", projection.New(s.Live.Subscribe(scope.Context(), recentBookings), models.ParseBooking, s.Log)).
			Add("recentMessages", projection.New(s.Live.Subscribe(scope.Context(), recentMessages), models.ParseMessage, s.Log)).
			Add("messageCount", projection.NewCounter(s.Live.Subscribe(scope.Context(), docstore.Query{Collection: docstore.CollectionMessages}))).
			Add("bookingCount", projection.NewCounter(s.Live.Subscribe(scope.Context(), docstore.Query{Collection: docstore.CollectionBookings})))
	})
}

// AdminNotifications streams mutation outcomes, starting with the recent
// ones.
func (s *Server) AdminNotifications(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if !transport.StartStream(w) {
		log.Error("notifications stream: streaming unsupported")
		transport.WriteError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}
	s.Metrics.StreamOpened()
	defer s.Metrics.StreamClosed()

	ctx := r.Context()
	feed := s.Feed.Subscribe(ctx)
	if err := transport.WriteEvent(w, "recent", s.Feed.Recent()); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat())
	defer heartbeat.Stop()
	stopped := s.streamsDone()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopped:
			log.Info("notifications stream: server shutting down")
			return
		case n := <-feed:
			if err := transport.WriteEvent(w, "notification", n); err != nil {
				log.Warn("notifications stream: write failed", slog.String("error", err.Error()))
				return
			}
		case <-heartbeat.C:
			if err := transport.WriteComment(w, "ping"); err != nil {
				return
			}
		}
	}
}
