package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"junks-backend/internal/blob"
	"junks-backend/internal/docstore"
	"junks-backend/internal/httpx"
	"junks-backend/internal/models"
	"junks-backend/internal/mutation"
	"junks-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

type AdminServiceRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"required,max=2000"`
}

type AdminTestimonialRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Text      string `json:"text" validate:"required,max=2000"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
}

type AdminStatusRequest struct {
	Status string `json:"status" validate:"required,bookingstatus"`
	Notify bool   `json:"notify"`
}

type AdminSocialsRequest struct {
	Facebook  *string `json:"facebook" validate:"omitempty,url"`
	Twitter   *string `json:"twitter" validate:"omitempty,url"`
	Instagram *string `json:"instagram" validate:"omitempty,url"`
	WhatsApp  *string `json:"whatsapp" validate:"omitempty,url"`
}

type AdminSettingsRequest struct {
	Location *string              `json:"location" validate:"omitempty,max=300"`
	Phone    *string              `json:"phone" validate:"omitempty,max=120"`
	Email    *string              `json:"email" validate:"omitempty,email"`
	Socials  *AdminSocialsRequest `json:"socials"`
}

func (s *Server) AdminCreateService(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminServiceRequest
	if !s.decodeValid(w, r, log, "admin services create", &req) {
		return
	}

	service := models.Service{Title: strings.TrimSpace(req.Title), Description: strings.TrimSpace(req.Description)}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := s.Mutations.Create(ctx, docstore.CollectionServices, service.Fields())
	if err != nil {
		s.writeStoreError(w, log, "admin services create", err)
		return
	}
	service.ID = id
	s.invalidate(r.Context(), cacheKeyServices)

	log.Info("admin services create: ok", slog.String("service_id", id))
	transport.WriteJSON(w, http.StatusCreated, service)
}

func (s *Server) AdminUpdateService(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	var req AdminServiceRequest
	if !s.decodeValid(w, r, log, "admin services update", &req) {
		return
	}

	service := models.Service{ID: id, Title: strings.TrimSpace(req.Title), Description: strings.TrimSpace(req.Description)}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Mutations.Update(ctx, docstore.CollectionServices, id, service.Fields()); err != nil {
		s.writeStoreError(w, log, "admin services update", err)
		return
	}
	s.invalidate(r.Context(), cacheKeyServices)

	log.Info("admin services update: ok", slog.String("service_id", id))
	transport.WriteJSON(w, http.StatusOK, service)
}

func (s *Server) AdminDeleteService(w http.ResponseWriter, r *http.Request) {
	s.deleteDocument(w, r, "admin services delete", docstore.CollectionServices, cacheKeyServices)
}

func (s *Server) AdminCreateTestimonial(w http.ResponseWriter, r *http.Request) {
	s.saveTestimonial(w, r, "")
}

func (s *Server) AdminUpdateTestimonial(w http.ResponseWriter, r *http.Request) {
	s.saveTestimonial(w, r, chi.URLParam(r, "id"))
}

func (s *Server) AdminDeleteTestimonial(w http.ResponseWriter, r *http.Request) {
	s.deleteDocument(w, r, "admin testimonials delete", docstore.CollectionTestimonials, cacheKeyTestimonials)
}

// saveTestimonial creates (empty id) or updates a testimonial. A multipart
// request may carry an avatar file, which is uploaded before anything is
// written.
func (s *Server) saveTestimonial(w http.ResponseWriter, r *http.Request, id string) {
	area := "admin testimonials create"
	if id != "" {
		area = "admin testimonials update"
	}
	log := s.logWithRequest(r)

	var (
		req    AdminTestimonialRequest
		avatar *multipart.FileHeader
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(blob.MaxSourceBytes); err != nil {
			log.Warn(area+": invalid form", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, "invalid form", nil)
			return
		}
		req = AdminTestimonialRequest{
			Name:      r.FormValue("name"),
			Text:      r.FormValue("text"),
			AvatarURL: r.FormValue("avatarUrl"),
		}
		if _, fh, err := r.FormFile("avatar"); err == nil {
			avatar = fh
		}
		if err := s.Val.Struct(req); err != nil {
			log.Warn(area + ": validation error")
			details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
			transport.WriteError(w, http.StatusBadRequest, "validation error", details)
			return
		}
	} else if !s.decodeValid(w, r, log, area, &req) {
		return
	}

	testimonial := models.Testimonial{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		Text:      strings.TrimSpace(req.Text),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	write := func(avatarURL string) error {
		if avatarURL != "" {
			testimonial.AvatarURL = avatarURL
		}
		if id == "" {
			newID, err := s.Mutations.Create(ctx, docstore.CollectionTestimonials, testimonial.Fields())
			testimonial.ID = newID
			return err
		}
		return s.Mutations.Update(ctx, docstore.CollectionTestimonials, id, testimonial.Fields())
	}

	var err error
	if avatar != nil {
		err = s.Mutations.WithUpload(ctx, s.uploadFile(log, avatar, blob.AvatarKey(avatar.Filename)), "Could not upload the avatar.", write)
	} else {
		err = write("")
	}
	if err != nil {
		s.writeStoreError(w, log, area, err)
		return
	}
	s.invalidate(r.Context(), cacheKeyTestimonials)

	log.Info(area+": ok", slog.String("testimonial_id", testimonial.ID))
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	transport.WriteJSON(w, status, testimonial)
}

func (s *Server) AdminUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	var req AdminStatusRequest
	if !s.decodeValid(w, r, log, "admin bookings status", &req) {
		return
	}
	status := models.BookingStatus(req.Status)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Mutations.UpdateBookingStatus(ctx, id, status); err != nil {
		s.writeStoreError(w, log, "admin bookings status", err)
		return
	}

	if req.Notify {
		s.sendBookingStatus(log, id)
	}

	log.Info("admin bookings status: ok", slog.String("booking_id", id), slog.String("status", req.Status))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// sendBookingStatus mails the customer the current booking status in the
// background.
func (s *Server) sendBookingStatus(log *slog.Logger, id string) {
	if s.Mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		doc, err := s.Store.Get(ctx, docstore.CollectionBookings, id)
		if err != nil {
			log.Warn("booking status email: load failed", slog.String("booking_id", id), slog.String("error", err.Error()))
			return
		}
		booking, err := models.ParseBooking(doc)
		if err != nil {
			log.Warn("booking status email: malformed booking", slog.String("booking_id", id), slog.String("error", err.Error()))
			return
		}
		if _, err := s.Mailer.SendBookingStatus(ctx, booking); err != nil {
			log.Warn("booking status email: send failed", slog.String("booking_id", id), slog.String("error", err.Error()))
			return
		}
		log.Info("booking status email: sent", slog.String("booking_id", id))
	}()
}

func (s *Server) AdminDeleteMessage(w http.ResponseWriter, r *http.Request) {
	s.deleteDocument(w, r, "admin messages delete", docstore.CollectionMessages)
}

func (s *Server) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminSettingsRequest
	if !s.decodeValid(w, r, log, "admin settings update", &req) {
		return
	}

	fields := settingsFields(req)
	if len(fields) == 0 {
		log.Warn("admin settings update: empty")
		transport.WriteError(w, http.StatusBadRequest, "no fields to update", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Mutations.SetMerge(ctx, docstore.CollectionSettings+"/"+docstore.SettingsSiteID, fields); err != nil {
		s.writeStoreError(w, log, "admin settings update", err)
		return
	}
	s.invalidate(r.Context(), cacheKeySettings)

	settings := models.DefaultSettings()
	if doc, err := s.Store.Get(ctx, docstore.CollectionSettings, docstore.SettingsSiteID); err == nil {
		settings, _ = models.ParseSettings(doc)
	}
	log.Info("admin settings update: ok", slog.Int("fields", len(fields)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

func settingsFields(req AdminSettingsRequest) map[string]interface{} {
	fields := make(map[string]interface{})
	set := func(dst map[string]interface{}, name string, v *string) {
		if v != nil {
			dst[name] = strings.TrimSpace(*v)
		}
	}
	set(fields, "location", req.Location)
	set(fields, "phone", req.Phone)
	set(fields, "email", req.Email)
	if req.Socials != nil {
		socials := make(map[string]interface{})
		set(socials, "facebook", req.Socials.Facebook)
		set(socials, "twitter", req.Socials.Twitter)
		set(socials, "instagram", req.Socials.Instagram)
		set(socials, "whatsapp", req.Socials.WhatsApp)
		if len(socials) > 0 {
			fields["socials"] = socials
		}
	}
	return fields
}

// AdminUploadHeroImage replaces the home page hero image.
func (s *Server) AdminUploadHeroImage(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	fh, ok := s.formImage(w, r, log, "admin hero image", "image")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var heroURL string
	err := s.Mutations.WithUpload(ctx, s.uploadFile(log, fh, blob.HeroImageKey(s.now())), "Could not upload the hero image.", func(url string) error {
		heroURL = url
		return s.Mutations.SetMerge(ctx, docstore.CollectionSettings+"/"+docstore.SettingsSiteID, map[string]interface{}{"heroImageUrl": url})
	})
	if err != nil {
		s.writeStoreError(w, log, "admin hero image", err)
		return
	}
	s.invalidate(r.Context(), cacheKeySettings)

	log.Info("admin hero image: ok", slog.String("url", heroURL))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"heroImageUrl": heroURL})
}

// AdminUpload stores an image and returns its public URL without touching
// any document.
func (s *Server) AdminUpload(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	fh, ok := s.formImage(w, r, log, "admin upload", "file")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var fileURL string
	err := s.Mutations.WithUpload(ctx, s.uploadFile(log, fh, blob.UploadKey(s.now(), fh.Filename)), "", func(url string) error {
		fileURL = url
		return nil
	})
	if err != nil {
		s.writeStoreError(w, log, "admin upload", err)
		return
	}

	log.Info("admin upload: ok", slog.String("url", fileURL))
	transport.WriteJSON(w, http.StatusCreated, map[string]string{"url": fileURL, "name": fh.Filename})
}

func (s *Server) formImage(w http.ResponseWriter, r *http.Request, log *slog.Logger, area, field string) (*multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(blob.MaxSourceBytes); err != nil {
		log.Warn(area+": invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid form", nil)
		return nil, false
	}
	_, fh, err := r.FormFile(field)
	if err != nil {
		log.Warn(area + ": missing file")
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{field: "required"})
		return nil, false
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		log.Warn(area+": not an image", slog.String("content_type", fh.Header.Get("Content-Type")))
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{field: "image"})
		return nil, false
	}
	return fh, true
}

func (s *Server) uploadFile(log *slog.Logger, fh *multipart.FileHeader, key string) mutation.UploadFunc {
	return func(ctx context.Context) (string, error) {
		f, err := fh.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %w", blob.ErrUploadFailed, fh.Filename, err)
		}
		defer f.Close()
		return s.Uploader.Upload(ctx, blob.Upload{
			Key:         key,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		}, func(percent int) {
			log.Debug("upload: progress", slog.String("key", key), slog.Int("percent", percent))
		})
	}
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request, area, collection string, cacheKeys ...string) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	confirmed := httpx.Confirmed(r.URL.Query())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := s.Mutations.Delete(ctx, collection, id, func(string) bool { return confirmed })
	if errors.Is(err, mutation.ErrNotConfirmed) {
		log.Warn(area+": not confirmed", slog.String("id", id))
		transport.WriteError(w, http.StatusPreconditionRequired, "confirmation required", map[string]string{"confirm": "true"})
		return
	}
	if err != nil {
		s.writeStoreError(w, log, area, err)
		return
	}
	s.invalidate(r.Context(), cacheKeys...)

	log.Info(area+": ok", slog.String("id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, log *slog.Logger, area string, req interface{}) bool {
	if err := httpx.DecodeJSON(r.Body, req); err != nil {
		log.Warn(area + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn(area + ": validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, log *slog.Logger, area string, err error) {
	switch {
	case errors.Is(err, blob.ErrNotConfigured):
		log.Warn(area+": uploads not configured", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusServiceUnavailable, "uploads not configured", nil)
	case errors.Is(err, blob.ErrUploadFailed):
		log.Error(area+": upload failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadGateway, "upload failed", nil)
	case errors.Is(err, docstore.ErrNotFound):
		log.Warn(area + ": not found")
		transport.WriteError(w, http.StatusNotFound, "not found", nil)
	default:
		log.Error(area+": database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
