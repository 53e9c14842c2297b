package models

import (
	"errors"
	"fmt"
	"time"

	"junks-backend/internal/docstore"
)

// ErrMalformed marks a stored document that does not fit its record type.
var ErrMalformed = errors.New("malformed document")

type fieldReader struct {
	doc docstore.Document
	err error
}

func (r *fieldReader) required(name string) string {
	if r.err != nil {
		return ""
	}
	v, ok := r.doc.Fields[name].(string)
	if !ok || v == "" {
		r.err = fmt.Errorf("%w: %s: field %q missing or not a string", ErrMalformed, r.doc.ID, name)
		return ""
	}
	return v
}

func (r *fieldReader) optional(name string) string {
	if r.err != nil {
		return ""
	}
	raw, present := r.doc.Fields[name]
	if !present || raw == nil {
		return ""
	}
	v, ok := raw.(string)
	if !ok {
		r.err = fmt.Errorf("%w: %s: field %q is not a string", ErrMalformed, r.doc.ID, name)
	}
	return v
}

// timestamp tolerates a missing value; a pending server timestamp reads as
// zero.
func (r *fieldReader) timestamp(name string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	switch v := r.doc.Fields[name].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	default:
		r.err = fmt.Errorf("%w: %s: field %q is not a timestamp", ErrMalformed, r.doc.ID, name)
		return time.Time{}
	}
}

func ParseService(doc docstore.Document) (Service, error) {
	r := &fieldReader{doc: doc}
	s := Service{
		ID:          doc.ID,
		Title:       r.required("title"),
		Description: r.optional("description"),
	}
	return s, r.err
}

func ParseTestimonial(doc docstore.Document) (Testimonial, error) {
	r := &fieldReader{doc: doc}
	t := Testimonial{
		ID:        doc.ID,
		Name:      r.required("name"),
		Text:      r.required("text"),
		AvatarURL: r.optional("avatarUrl"),
	}
	return t, r.err
}

func ParseBooking(doc docstore.Document) (Booking, error) {
	r := &fieldReader{doc: doc}
	b := Booking{
		ID:        doc.ID,
		Name:      r.required("name"),
		Email:     r.required("email"),
		Phone:     r.required("phone"),
		Service:   r.required("service"),
		Date:      r.required("date"),
		Time:      r.required("time"),
		Details:   r.optional("details"),
		Status:    BookingStatus(r.required("status")),
		CreatedAt: r.timestamp("createdAt"),
	}
	if r.err != nil {
		return Booking{}, r.err
	}
	if !b.Status.Valid() {
		return Booking{}, fmt.Errorf("%w: %s: unknown booking status %q", ErrMalformed, doc.ID, b.Status)
	}
	return b, nil
}

func ParseMessage(doc docstore.Document) (Message, error) {
	r := &fieldReader{doc: doc}
	m := Message{
		ID:        doc.ID,
		Name:      r.required("name"),
		Email:     r.required("email"),
		Phone:     r.optional("phone"),
		Subject:   r.required("subject"),
		Message:   r.required("message"),
		Status:    MessageStatus(r.required("status")),
		CreatedAt: r.timestamp("createdAt"),
	}
	if r.err != nil {
		return Message{}, r.err
	}
	if !m.Status.Valid() {
		return Message{}, fmt.Errorf("%w: %s: unknown message status %q", ErrMalformed, doc.ID, m.Status)
	}
	return m, nil
}

// ParseSettings never fails: every missing or mistyped field falls back to
// its default.
func ParseSettings(doc docstore.Document) (Settings, error) {
	s := DefaultSettings()
	str := func(fields map[string]interface{}, name, fallback string) string {
		if v, ok := fields[name].(string); ok && v != "" {
			return v
		}
		return fallback
	}
	s.Location = str(doc.Fields, "location", s.Location)
	s.Phone = str(doc.Fields, "phone", s.Phone)
	s.Email = str(doc.Fields, "email", s.Email)
	s.HeroImageURL = str(doc.Fields, "heroImageUrl", "")
	if socials, ok := doc.Fields["socials"].(map[string]interface{}); ok {
		s.Socials = Socials{
			Facebook:  str(socials, "facebook", ""),
			Twitter:   str(socials, "twitter", ""),
			Instagram: str(socials, "instagram", ""),
			WhatsApp:  str(socials, "whatsapp", ""),
		}
	}
	return s, nil
}

// SettingsFrom returns the settings held by a single-document view, or the
// defaults when the document does not exist.
func SettingsFrom(docs []Settings) Settings {
	if len(docs) == 0 {
		return DefaultSettings()
	}
	return docs[0]
}

func (s Service) Fields() map[string]interface{} {
	return map[string]interface{}{
		"title":       s.Title,
		"description": s.Description,
	}
}

func (t Testimonial) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"name": t.Name,
		"text": t.Text,
	}
	if t.AvatarURL != "" {
		fields["avatarUrl"] = t.AvatarURL
	}
	return fields
}

// Fields returns the document for a new booking. createdAt is left to the
// store.
func (b Booking) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"name":      b.Name,
		"email":     b.Email,
		"phone":     b.Phone,
		"service":   b.Service,
		"date":      b.Date,
		"time":      b.Time,
		"status":    string(b.Status),
		"createdAt": docstore.ServerTimestamp,
	}
	if b.Details != "" {
		fields["details"] = b.Details
	}
	return fields
}

func (m Message) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"name":      m.Name,
		"email":     m.Email,
		"subject":   m.Subject,
		"message":   m.Message,
		"status":    string(m.Status),
		"createdAt": docstore.ServerTimestamp,
	}
	if m.Phone != "" {
		fields["phone"] = m.Phone
	}
	return fields
}
