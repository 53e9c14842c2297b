// Package mutation performs admin and visitor writes against the document
// store and reports each outcome as a notification. Views are never touched
// here; they follow the store through their own subscriptions.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"junks-backend/internal/docstore"
	"junks-backend/internal/metrics"
	"junks-backend/internal/models"
	"junks-backend/internal/notifications"
)

var ErrNotConfirmed = errors.New("delete not confirmed")

type Notifier interface {
	Notify(ctx context.Context, n notifications.Notification)
}

// Confirmer asks the acting user to approve a destructive action.
type Confirmer func(prompt string) bool

// Confirmed approves without asking.
func Confirmed(string) bool { return true }

type Dispatcher struct {
	store    docstore.Store
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(store docstore.Store, notifier Notifier, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: store, notifier: notifier, log: log, metrics: m}
}

var entityNames = map[string]string{
	docstore.CollectionServices:     "Service",
	docstore.CollectionTestimonials: "Testimonial",
	docstore.CollectionBookings:     "Booking",
	docstore.CollectionMessages:     "Message",
	docstore.CollectionSettings:     "Settings",
}

func entity(collection string) string {
	if name, ok := entityNames[collection]; ok {
		return name
	}
	return "Item"
}

func (d *Dispatcher) success(ctx context.Context, description string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(ctx, notifications.Notification{Level: notifications.LevelSuccess, Title: "Success", Description: description})
}

func (d *Dispatcher) failure(ctx context.Context, description string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(ctx, notifications.Notification{Level: notifications.LevelError, Title: "Error", Description: description})
}

func (d *Dispatcher) logFailure(op, collection string, err error) {
	d.log.Error("mutation "+op+": store error", slog.String("collection", collection), slog.String("error", err.Error()))
}

// Create adds a document and returns the id the store assigned.
func (d *Dispatcher) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id, err := d.store.Add(ctx, collection, fields)
	d.metrics.MutationDone("create", collection, err)
	if err != nil {
		d.logFailure("create", collection, err)
		d.failure(ctx, fmt.Sprintf("Failed to save %s.", lower(entity(collection))))
		return "", err
	}
	d.success(ctx, fmt.Sprintf("%s added successfully.", entity(collection)))
	return id, nil
}

// CreateQuiet adds a document without notifying the admin, for writes made
// by site visitors.
func (d *Dispatcher) CreateQuiet(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id, err := d.store.Add(ctx, collection, fields)
	d.metrics.MutationDone("create", collection, err)
	if err != nil {
		d.logFailure("create", collection, err)
		return "", err
	}
	return id, nil
}

func (d *Dispatcher) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	err := d.store.Update(ctx, collection, id, fields)
	d.metrics.MutationDone("update", collection, err)
	if err != nil {
		d.logFailure("update", collection, err)
		d.failure(ctx, fmt.Sprintf("Failed to save %s.", lower(entity(collection))))
		return err
	}
	d.success(ctx, fmt.Sprintf("%s updated successfully.", entity(collection)))
	return nil
}

// Delete removes a document once confirm approves. A declined confirmation
// returns ErrNotConfirmed without touching the store. Deleting a document
// that is already gone succeeds silently.
func (d *Dispatcher) Delete(ctx context.Context, collection, id string, confirm Confirmer) error {
	name := entity(collection)
	if confirm == nil || !confirm(fmt.Sprintf("Are you sure you want to delete this %s?", lower(name))) {
		return ErrNotConfirmed
	}
	err := d.store.Delete(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		d.log.Info("mutation delete: already gone", slog.String("collection", collection), slog.String("id", id))
		return nil
	}
	d.metrics.MutationDone("delete", collection, err)
	if err != nil {
		d.logFailure("delete", collection, err)
		d.failure(ctx, fmt.Sprintf("Failed to delete %s.", lower(name)))
		return err
	}
	d.success(ctx, fmt.Sprintf("%s deleted successfully.", name))
	return nil
}

// SetMerge merge-writes a singleton document addressed as "collection/id".
func (d *Dispatcher) SetMerge(ctx context.Context, path string, fields map[string]interface{}) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	err = d.store.Merge(ctx, collection, id, fields)
	d.metrics.MutationDone("merge", collection, err)
	if err != nil {
		d.logFailure("merge", collection, err)
		d.failure(ctx, fmt.Sprintf("Failed to save %s.", lower(entity(collection))))
		return err
	}
	d.success(ctx, fmt.Sprintf("%s saved successfully.", entity(collection)))
	return nil
}

// UpdateBookingStatus writes only the status field. Any status may follow
// any other.
func (d *Dispatcher) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: booking status %q", models.ErrMalformed, status)
	}
	err := d.store.Update(ctx, docstore.CollectionBookings, id, map[string]interface{}{"status": string(status)})
	d.metrics.MutationDone("update", docstore.CollectionBookings, err)
	if err != nil {
		d.logFailure("update", docstore.CollectionBookings, err)
		d.failure(ctx, "Failed to update booking status.")
		return err
	}
	d.success(ctx, fmt.Sprintf("Booking marked as %s.", status))
	return nil
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context) (string, error)
}

type UploadFunc func(ctx context.Context) (string, error)

func (f UploadFunc) Upload(ctx context.Context) (string, error) { return f(ctx) }

// WithUpload runs upload and hands the resulting URL to write. When the
// upload fails write is never called.
func (d *Dispatcher) WithUpload(ctx context.Context, upload Uploader, failure string, write func(url string) error) error {
	url, err := upload.Upload(ctx)
	if err != nil {
		d.log.Error("mutation upload: failed", slog.String("error", err.Error()))
		if failure == "" {
			failure = "Could not upload the image."
		}
		d.failure(ctx, failure)
		return err
	}
	return write(url)
}

func lower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
