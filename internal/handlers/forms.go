package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"junks-backend/internal/docstore"
	"junks-backend/internal/httpx"
	"junks-backend/internal/models"
	"junks-backend/internal/schedule"
	"junks-backend/internal/transport"
	"junks-backend/internal/validation"
)

type BookingRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,phone"`
	Service string `json:"service" validate:"required,max=120"`
	Date    string `json:"date" validate:"required,date"`
	Time    string `json:"time" validate:"required,slot"`
	Details string `json:"details" validate:"max=2000"`
}

type BookingResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req BookingRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("booking create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Service = strings.TrimSpace(req.Service)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("booking create: validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	if ok, _ := schedule.IsDateBookable(req.Date, s.location(), s.now()); !ok {
		log.Warn("booking create: date not bookable", slog.String("date", req.Date))
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"Date": "future"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if req.Service != models.ServiceOther {
		docs, err := s.Store.Query(ctx, docstore.Query{
			Collection: docstore.CollectionServices,
			Where:      &docstore.Filter{Field: "title", Value: req.Service},
			Limit:      1,
		})
		if err != nil {
			log.Error("booking create: database error", slog.String("error", err.Error()))
			status, msg := storeStatus(err)
			transport.WriteError(w, status, msg, nil)
			return
		}
		if len(docs) == 0 {
			log.Warn("booking create: unknown service", slog.String("service", req.Service))
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"Service": "oneof"})
			return
		}
	}

	booking := models.Booking{
		Name:    req.Name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   validation.NormalizePhone(req.Phone),
		Service: req.Service,
		Date:    req.Date,
		Time:    req.Time,
		Details: strings.TrimSpace(req.Details),
		Status:  models.BookingPending,
	}
	id, err := s.Mutations.CreateQuiet(ctx, docstore.CollectionBookings, booking.Fields())
	if err != nil {
		log.Error("booking create: database error", slog.String("error", err.Error()))
		status, msg := storeStatus(err)
		transport.WriteError(w, status, msg, nil)
		return
	}
	booking.ID = id
	booking.CreatedAt = s.now()

	s.sendBookingReceived(log, booking)

	log.Info("booking create: stored", slog.String("booking_id", id))
	transport.WriteJSON(w, http.StatusCreated, BookingResponse{
		ID:      id,
		Status:  string(booking.Status),
		Title:   "Appointment Booked!",
		Message: bookingConfirmation(booking, s.location()),
	})
}

func bookingConfirmation(b models.Booking, loc *time.Location) string {
	day := b.Date
	if d, err := schedule.ParseDate(b.Date, loc); err == nil {
		day = d.Format("January 2, 2006")
	}
	return "We've scheduled your service for " + day + " at " + b.Time + ". We'll send a confirmation email to " + b.Email + "."
}

// sendBookingReceived mails the visitor in the background. Delivery failures
// never affect the booking.
func (s *Server) sendBookingReceived(log *slog.Logger, booking models.Booking) {
	if s.Mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		messageID, err := s.Mailer.SendBookingReceived(ctx, booking)
		if err != nil {
			log.Warn("booking email: send failed", slog.String("booking_id", booking.ID), slog.String("error", err.Error()))
			return
		}
		log.Info("booking email: sent", slog.String("booking_id", booking.ID), slog.String("message_id", messageID))
	}()
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=5,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

type FormResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) CreateContact(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req ContactRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("contact create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("contact create: validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	msg := models.Message{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
		Status:  models.MessageNew,
	}
	s.storeMessage(w, r, log, "contact create", msg, FormResponse{
		Title:   "Message Sent!",
		Message: "Thank you for contacting us. We'll get back to you shortly.",
	})
}

type QuoteRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,phone"`
	Service string `json:"service" validate:"required,max=120"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// CreateQuote stores a quick quote request as a message.
func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req QuoteRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("quote create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("quote create: validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	msg := models.Message{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   validation.NormalizePhone(req.Phone),
		Subject: "Quote Request: " + strings.TrimSpace(req.Service),
		Message: strings.TrimSpace(req.Message),
		Status:  models.MessageNew,
	}
	s.storeMessage(w, r, log, "quote create", msg, FormResponse{
		Title:   "Quote Request Sent!",
		Message: "Thank you for your interest. We'll get back to you with a quote shortly.",
	})
}

func (s *Server) storeMessage(w http.ResponseWriter, r *http.Request, log *slog.Logger, area string, msg models.Message, resp FormResponse) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := s.Mutations.CreateQuiet(ctx, docstore.CollectionMessages, msg.Fields())
	if err != nil {
		log.Error(area+": database error", slog.String("error", err.Error()))
		status, text := storeStatus(err)
		transport.WriteError(w, status, text, nil)
		return
	}
	log.Info(area+": stored", slog.String("message_id", id))
	resp.ID = id
	transport.WriteJSON(w, http.StatusCreated, resp)
}
