package notifications

import (
	"bytes"
	"html/template"

	"junks-backend/internal/models"
)

const bookingReceivedTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Thanks for booking with The Junks. We have received your request:</p>
  <ul>
    <li>Service: {{.Service}}</li>
    <li>Date: {{.Date}}</li>
    <li>Time: {{.Time}}</li>
    {{if .Details}}<li>Details: {{.Details}}</li>{{end}}
    <li>Reference: {{.ID}}</li>
  </ul>
  <p>We will contact you on {{.Phone}} to confirm.</p>
</body>
</html>`

const bookingStatusTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Your booking for {{.Service}} on {{.Date}} ({{.Time}}) is now <strong>{{.Status}}</strong>.</p>
  <p>Reference: {{.ID}}</p>
</body>
</html>`

var (
	bookingReceivedTmpl = template.Must(template.New("booking_received").Parse(bookingReceivedTemplate))
	bookingStatusTmpl   = template.Must(template.New("booking_status").Parse(bookingStatusTemplate))
)

func buildBookingHTML(tmpl *template.Template, booking models.Booking) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, booking); err != nil {
		return "", err
	}
	return buf.String(), nil
}
