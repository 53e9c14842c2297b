package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"junks-backend/internal/docstore"
	"junks-backend/internal/projection"
)

const (
	cacheKeyServices     = "services:all"
	cacheKeyTestimonials = "testimonials:all"
	cacheKeySettings     = "settings:site"
)

var (
	servicesQuery     = docstore.Query{Collection: docstore.CollectionServices, OrderBy: "title"}
	testimonialsQuery = docstore.Query{Collection: docstore.CollectionTestimonials, OrderBy: "name"}
	bookingsQuery     = docstore.Query{Collection: docstore.CollectionBookings, OrderBy: "createdAt", Direction: docstore.Desc}
	messagesQuery     = docstore.Query{Collection: docstore.CollectionMessages, OrderBy: "createdAt", Direction: docstore.Desc}
)

// loadAll runs a one-shot query and parses every document, skipping the
// ones that do not fit T.
func loadAll[T any](ctx context.Context, store docstore.Store, q docstore.Query, parse projection.Parser[T], log *slog.Logger) ([]T, error) {
	docs, err := store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := parse(doc)
		if err != nil {
			log.Warn("query parse: skipped document", slog.String("collection", q.Collection), slog.String("id", doc.ID), slog.String("error", err.Error()))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func writeCachedJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// storeStatus maps a store error to an HTTP status and message.
func storeStatus(err error) (int, string) {
	switch {
	case docstore.IsPermissionDenied(err):
		return http.StatusForbidden, "permission denied"
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "database error"
	}
}
