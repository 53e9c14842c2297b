// Package docstore is the narrow contract the application holds against a
// remote document store. Drivers live in sub-packages (mongostore,
// firestorestore); the in-memory driver in this package backs tests and
// local development.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CollectionServices     = "services"
	CollectionTestimonials = "testimonials"
	CollectionBookings     = "bookings"
	CollectionMessages     = "messages"
	CollectionSettings     = "settings"

	SettingsSiteID = "site"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrClosed           = errors.New("listener closed")
	ErrInvalidPath      = errors.New("invalid document path")
)

type serverTimestamp struct{}

// ServerTimestamp may be used as a field value in Add, Update and Merge. The
// driver replaces it with the store's clock at write time.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Filter is an equality filter on a single field.
type Filter struct {
	Field string
	Value interface{}
}

type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
	Where      *Filter
	Limit      int
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	if q.Where != nil {
		fmt.Fprintf(&b, " where %s==%v", q.Where.Field, q.Where.Value)
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " order by %s %s", q.OrderBy, q.Direction)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}

type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Snapshot is a complete, ordered result set. Document listeners produce
// snapshots with zero or one document.
type Snapshot struct {
	Documents []Document
	ReadAt    time.Time
}

func (s Snapshot) Size() int { return len(s.Documents) }

// Stream delivers snapshots of a live query. Next blocks until the first or
// the next changed snapshot is available. Stop releases the listener; Next
// returns ErrClosed afterwards.
type Stream interface {
	Next(ctx context.Context) (Snapshot, error)
	Stop()
}

type Store interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Listen(ctx context.Context, q Query) (Stream, error)
	ListenDocument(ctx context.Context, collection, id string) (Stream, error)
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Close(ctx context.Context) error
}

// SplitPath splits "collection/id" into its parts.
func SplitPath(path string) (string, string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return parts[0], parts[1], nil
}

// IsPermissionDenied reports whether err is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
