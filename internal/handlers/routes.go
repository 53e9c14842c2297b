package handlers

import (
	"time"

	"junks-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes mounts the API on api. Event streams are kept out of the request
// timeout.
func (s *Server) Routes(formsLimiter *middleware.RateLimiter) func(api chi.Router) {
	adminKey := ""
	if s.Cfg != nil {
		adminKey = s.Cfg.AdminAPIKey
	}
	adminAuth := middleware.AdminAuth(adminKey, s.Auth, s.Verifier)
	limit := func(r chi.Router) chi.Router {
		if formsLimiter == nil {
			return r
		}
		return r.With(formsLimiter.Middleware)
	}

	return func(api chi.Router) {
		api.Group(func(rest chi.Router) {
			rest.Use(chiMiddleware.Timeout(30 * time.Second))

			rest.Get("/services", s.GetServices)
			rest.Get("/services/{id}/icon", s.GetServiceIcon)
			rest.Get("/testimonials", s.GetTestimonials)
			rest.Get("/settings", s.GetSettings)
			rest.Get("/bookings/slots", s.GetBookingSlots)
			limit(rest).Post("/bookings", s.CreateBooking)
			limit(rest).Post("/contact", s.CreateContact)
			limit(rest).Post("/quotes", s.CreateQuote)

			rest.Post("/admin/login", s.AdminLogin)
			rest.Post("/admin/refresh", s.AdminRefresh)
			rest.Post("/admin/logout", s.AdminLogout)
			rest.Get("/admin/session", s.AdminSession)

			rest.Group(func(protected chi.Router) {
				protected.Use(adminAuth)
				protected.Post("/admin/services", s.AdminCreateService)
				protected.Put("/admin/services/{id}", s.AdminUpdateService)
				protected.Delete("/admin/services/{id}", s.AdminDeleteService)
				protected.Post("/admin/testimonials", s.AdminCreateTestimonial)
				protected.Put("/admin/testimonials/{id}", s.AdminUpdateTestimonial)
				protected.Delete("/admin/testimonials/{id}", s.AdminDeleteTestimonial)
				protected.Patch("/admin/bookings/{id}/status", s.AdminUpdateBookingStatus)
				protected.Delete("/admin/messages/{id}", s.AdminDeleteMessage)
				protected.Patch("/admin/settings", s.AdminUpdateSettings)
				protected.Post("/admin/settings/hero-image", s.AdminUploadHeroImage)
				protected.Post("/admin/uploads", s.AdminUpload)
			})
		})

		api.Route("/live", func(live chi.Router) {
			live.Get("/services", s.LiveServices)
			live.Get("/testimonials", s.LiveTestimonials)
			live.Get("/settings", s.LiveSettings)
			live.Get("/home", s.LiveHome)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(adminAuth)
			protected.Get("/admin/live/services", s.AdminLiveServices)
			protected.Get("/admin/live/testimonials", s.AdminLiveTestimonials)
			protected.Get("/admin/live/bookings", s.AdminLiveBookings)
			protected.Get("/admin/live/messages", s.AdminLiveMessages)
			protected.Get("/admin/live/settings", s.AdminLiveSettings)
			protected.Get("/admin/live/dashboard", s.AdminLiveDashboard)
			protected.Get("/admin/notifications", s.AdminNotifications)
		})
	}
}
