package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"junks-backend/internal/models"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoClient struct {
	apiKey      string
	senderEmail string
	senderName  string
	sandbox     bool
	endpoint    string
	httpClient  *http.Client
}

func NewBrevoClient(apiKey, senderEmail, senderName string, sandbox bool) *BrevoClient {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(senderEmail) == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoClient{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		sandbox:     sandbox,
		endpoint:    defaultBrevoEndpoint,
		httpClient:  &http.Client{Timeout: 8 * time.Second},
	}
}

// ErrNoRecipient is returned for emails without a recipient address.
var ErrNoRecipient = errors.New("email has no recipient")

// email is one transactional message. Tags group sends in the Brevo logs.
type email struct {
	toEmail string
	toName  string
	subject string
	html    string
	tags    []string
}

// SendBookingReceived acknowledges a booking request submitted on the site.
func (c *BrevoClient) SendBookingReceived(ctx context.Context, booking models.Booking) (string, error) {
	return c.sendBooking(ctx, booking, bookingReceivedTmpl, "booking-received",
		fmt.Sprintf("Booking received - %s", booking.Service))
}

// SendBookingStatus tells the customer their booking moved to a new status.
func (c *BrevoClient) SendBookingStatus(ctx context.Context, booking models.Booking) (string, error) {
	return c.sendBooking(ctx, booking, bookingStatusTmpl, "booking-status",
		fmt.Sprintf("Your booking is %s", strings.ToLower(string(booking.Status))))
}

func (c *BrevoClient) sendBooking(ctx context.Context, booking models.Booking, tmpl *template.Template, tag, subject string) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	body, err := buildBookingHTML(tmpl, booking)
	if err != nil {
		return "", err
	}
	return c.send(ctx, email{
		toEmail: booking.Email,
		toName:  booking.Name,
		subject: subject,
		html:    body,
		tags:    []string{tag},
	})
}

func (c *BrevoClient) send(ctx context.Context, e email) (string, error) {
	if strings.TrimSpace(e.toEmail) == "" {
		return "", ErrNoRecipient
	}
	if strings.TrimSpace(e.subject) == "" || strings.TrimSpace(e.html) == "" {
		return "", errors.New("email needs a subject and a body")
	}

	payload := brevoSendRequest{
		Sender:      brevoContact{Name: c.senderName, Email: c.senderEmail},
		ReplyTo:     &brevoContact{Name: c.senderName, Email: c.senderEmail},
		To:          []brevoContact{{Email: e.toEmail, Name: e.toName}},
		Subject:     e.subject,
		HtmlContent: e.html,
		Tags:        e.tags,
	}
	if c.sandbox {
		payload.Headers = map[string]string{"X-Sib-Sandbox": "drop"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("brevo encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("brevo send: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out brevoSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brevo decode: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("brevo send: response has no messageId")
	}
	return out.MessageID, nil
}

type brevoSendRequest struct {
	Sender      brevoContact      `json:"sender"`
	ReplyTo     *brevoContact     `json:"replyTo,omitempty"`
	To          []brevoContact    `json:"to"`
	Subject     string            `json:"subject"`
	HtmlContent string            `json:"htmlContent"`
	Tags        []string          `json:"tags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}
