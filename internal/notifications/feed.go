package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is the admin-facing outcome of a mutation.
type Notification struct {
	ID          string    `json:"id"`
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// Feed fans notifications out to connected admin streams. Slow subscribers
// lose notifications rather than block the publisher.
type Feed struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   map[chan Notification]struct{}
	recent []Notification
	keep   int
}

func NewFeed(log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{log: log, subs: make(map[chan Notification]struct{}), keep: 20}
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	attrs := []any{slog.String("title", n.Title), slog.String("description", n.Description)}
	if n.Level == LevelError {
		f.log.Warn("notification: "+string(n.Level), attrs...)
	} else {
		f.log.Info("notification: "+string(n.Level), attrs...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, n)
	if len(f.recent) > f.keep {
		f.recent = f.recent[len(f.recent)-f.keep:]
	}
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a listener until ctx ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
	}()
	return ch
}

// Recent returns the latest notifications, oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.recent...)
}
