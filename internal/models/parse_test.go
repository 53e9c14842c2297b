package models

import (
	"errors"
	"testing"
	"time"

	"junks-backend/internal/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBooking(t *testing.T) {
	created := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	doc := docstore.Document{ID: "b1", Fields: map[string]interface{}{
		"name": "Jane Doe", "email": "jane@example.com", "phone": "0811234567",
		"service": "Solar Installation", "date": "2025-08-20", "time": "9:00 AM - 11:00 AM",
		"status": "Pending", "createdAt": created,
	}}

	b, err := ParseBooking(doc)
	require.NoError(t, err)
	assert.Equal(t, BookingPending, b.Status)
	assert.Equal(t, created, b.CreatedAt)
	assert.Empty(t, b.Details)

	doc.Fields["status"] = "Rescheduled"
	_, err = ParseBooking(doc)
	assert.True(t, errors.Is(err, ErrMalformed))

	doc.Fields["status"] = "Pending"
	delete(doc.Fields, "email")
	_, err = ParseBooking(doc)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseBookingPendingTimestamp(t *testing.T) {
	doc := docstore.Document{ID: "b2", Fields: map[string]interface{}{
		"name": "Jane Doe", "email": "jane@example.com", "phone": "0811234567",
		"service": "Other", "date": "2025-08-20", "time": "1:00 PM - 3:00 PM",
		"status": "Confirmed",
	}}
	b, err := ParseBooking(doc)
	require.NoError(t, err)
	assert.True(t, b.CreatedAt.IsZero())

	doc.Fields["createdAt"] = "yesterday"
	_, err = ParseBooking(doc)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMessage(t *testing.T) {
	doc := docstore.Document{ID: "m1", Fields: map[string]interface{}{
		"name": "Sipho", "email": "sipho@example.com", "subject": "Quote Request: House Wiring",
		"message": "Need a quote", "status": "New", "phone": "0820000000",
	}}
	m, err := ParseMessage(doc)
	require.NoError(t, err)
	assert.Equal(t, MessageNew, m.Status)
	assert.Equal(t, "0820000000", m.Phone)

	doc.Fields["phone"] = 820000000
	_, err = ParseMessage(doc)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseServiceAndTestimonial(t *testing.T) {
	s, err := ParseService(docstore.Document{ID: "s1", Fields: map[string]interface{}{"title": "House Wiring"}})
	require.NoError(t, err)
	assert.Equal(t, "House Wiring", s.Title)

	_, err = ParseService(docstore.Document{ID: "s2", Fields: map[string]interface{}{"title": 7}})
	assert.ErrorIs(t, err, ErrMalformed)

	tm, err := ParseTestimonial(docstore.Document{ID: "t1", Fields: map[string]interface{}{
		"name": "Thabo", "text": "Great work", "avatarUrl": "https://cdn.example.com/a.jpg",
	}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", tm.AvatarURL)
}

func TestParseSettingsDefaults(t *testing.T) {
	s, err := ParseSettings(docstore.Document{ID: "site", Fields: map[string]interface{}{
		"phone":   "081 000 0000",
		"email":   42,
		"socials": map[string]interface{}{"facebook": "https://facebook.com/junks", "twitter": false},
	}})
	require.NoError(t, err)
	assert.Equal(t, "081 000 0000", s.Phone)
	assert.Equal(t, DefaultEmail, s.Email)
	assert.Equal(t, DefaultLocation, s.Location)
	assert.Equal(t, "https://facebook.com/junks", s.Socials.Facebook)
	assert.Empty(t, s.Socials.Twitter)

	assert.Equal(t, DefaultSettings(), SettingsFrom(nil))
}

func TestBookingFieldsUseServerTimestamp(t *testing.T) {
	fields := Booking{Name: "Jane Doe", Status: BookingPending}.Fields()
	assert.True(t, docstore.IsServerTimestamp(fields["createdAt"]))
	assert.Equal(t, "Pending", fields["status"])
	_, hasDetails := fields["details"]
	assert.False(t, hasDetails)
}

func TestBookingStatusValid(t *testing.T) {
	for _, s := range BookingStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, BookingStatus("pending").Valid())
}
