package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"junks-backend/internal/cache"
	"junks-backend/internal/docstore"
	"junks-backend/internal/icons"
	"junks-backend/internal/models"
	"junks-backend/internal/schedule"
	"junks-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

func (s *Server) GetServices(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.serveCached(w, r, cacheKeyServices) {
		log.Info("services: cache hit")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := loadAll(ctx, s.Store, servicesQuery, models.ParseService, log)
	if err != nil {
		log.Error("services: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	}

	response := map[string]interface{}{"services": items}
	s.storeCached(r.Context(), cacheKeyServices, response)
	log.Info("services: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (s *Server) GetTestimonials(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.serveCached(w, r, cacheKeyTestimonials) {
		log.Info("testimonials: cache hit")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := loadAll(ctx, s.Store, testimonialsQuery, models.ParseTestimonial, log)
	if err != nil {
		log.Error("testimonials: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	}

	response := map[string]interface{}{"testimonials": items}
	s.storeCached(r.Context(), cacheKeyTestimonials, response)
	log.Info("testimonials: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.serveCached(w, r, cacheKeySettings) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	settings := models.DefaultSettings()
	doc, err := s.Store.Get(ctx, docstore.CollectionSettings, docstore.SettingsSiteID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
	case err != nil:
		log.Error("settings: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	default:
		settings, _ = models.ParseSettings(doc)
	}

	response := map[string]interface{}{"settings": settings}
	s.storeCached(r.Context(), cacheKeySettings, response)
	transport.WriteJSON(w, http.StatusOK, response)
}

type ServiceIconResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

func (s *Server) GetServiceIcon(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := s.Store.Get(ctx, docstore.CollectionServices, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			log.Warn("service icon: not found", slog.String("service_id", id))
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("service icon: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	}
	service, err := models.ParseService(doc)
	if err != nil {
		log.Error("service icon: malformed service", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "malformed service", nil)
		return
	}

	icon := icons.FallbackIcon
	if s.Icons != nil {
		genCtx, genCancel := context.WithTimeout(r.Context(), 60*time.Second)
		icon = s.Icons.Icon(genCtx, service.Title)
		genCancel()
	}
	transport.WriteJSON(w, http.StatusOK, ServiceIconResponse{ID: service.ID, Title: service.Title, Icon: icon})
}

type SlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// GetBookingSlots lists the time slots still open on a date.
func (s *Server) GetBookingSlots(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	date := r.URL.Query().Get("date")
	if _, err := schedule.ParseDate(date, s.location()); err != nil {
		log.Warn("booking slots: invalid date", slog.String("date", date))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", map[string]string{"date": "YYYY-MM-DD"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	reserved, err := s.reservedSlots(ctx, date)
	if err != nil {
		log.Error("booking slots: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	}

	slots, err := schedule.AvailableSlots(date, s.location(), s.now(), reserved)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, SlotsResponse{Date: date, Slots: slots})
}

// reservedSlots returns the slots of date held by bookings that are not
// cancelled.
func (s *Server) reservedSlots(ctx context.Context, date string) (map[string]bool, error) {
	bookings, err := loadAll(ctx, s.Store, docstore.Query{
		Collection: docstore.CollectionBookings,
		Where:      &docstore.Filter{Field: "date", Value: date},
	}, models.ParseBooking, s.Log)
	if err != nil {
		return nil, err
	}
	reserved := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		if b.Status != models.BookingCancelled {
			reserved[b.Time] = true
		}
	}
	return reserved, nil
}

func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.Cache == nil {
		return false
	}
	cached, ok, err := s.Cache.Get(r.Context(), key)
	if err != nil || !ok {
		return false
	}
	writeCachedJSON(w, http.StatusOK, cached)
	return true
}

func (s *Server) storeCached(ctx context.Context, key string, response interface{}) {
	if s.Cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.Cache, key, response, s.cacheTTL()); err != nil {
		s.Log.Warn("cache set: failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
