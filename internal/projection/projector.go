// Package projection maps live query snapshots to typed view models.
package projection

import (
	"fmt"
	"log/slog"
	"sync"

	"junks-backend/internal/docstore"
	"junks-backend/internal/livequery"
)

// PermissionHelp is shown when the store rejects a listener.
const PermissionHelp = "Missing or insufficient permissions. Sign in as the site admin and check that the store's access rules allow reading %s."

type Parser[T any] func(docstore.Document) (T, error)

type View[T any] struct {
	Data      []T    `json:"data"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

type Projector[T any] struct {
	sub   *livequery.Subscription
	parse Parser[T]
	log   *slog.Logger

	changes chan struct{}
	stop    chan struct{}

	mu     sync.Mutex
	view   View[T]
	closed bool
}

// New starts projecting sub. The projector owns the subscription and cancels
// it on Close.
func New[T any](sub *livequery.Subscription, parse Parser[T], log *slog.Logger) *Projector[T] {
	if log == nil {
		log = slog.Default()
	}
	p := &Projector[T]{
		sub:     sub,
		parse:   parse,
		log:     log.With(slog.String("query", sub.String())),
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		view:    View[T]{Data: []T{}, IsLoading: true},
	}
	go p.run()
	return p
}

func (p *Projector[T]) run() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.sub.Updates():
			p.refresh()
		case <-p.sub.Done():
			p.refresh()
			return
		}
	}
}

func (p *Projector[T]) refresh() {
	snap, hasSnap := p.sub.Latest()
	err := p.sub.Err()

	var data []T
	if hasSnap {
		data = make([]T, 0, snap.Size())
		for _, doc := range snap.Documents {
			item, perr := p.parse(doc)
			if perr != nil {
				p.log.Warn("projection parse: skipped document", slog.String("id", doc.ID), slog.String("error", perr.Error()))
				continue
			}
			data = append(data, item)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.view.Error != "" {
		return
	}
	if hasSnap {
		p.view.Data = data
		p.view.IsLoading = false
	}
	if err != nil {
		p.view.Error = Message(p.sub.Collection(), err)
		p.view.IsLoading = false
	}
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// View returns a copy of the current view.
func (p *Projector[T]) View() View[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.view
	out.Data = append([]T(nil), p.view.Data...)
	if out.Data == nil {
		out.Data = []T{}
	}
	return out
}

func (p *Projector[T]) Value() interface{} { return p.View() }

// Changes signals that View changed. Signals coalesce.
func (p *Projector[T]) Changes() <-chan struct{} { return p.changes }

// Close cancels the subscription. The view does not change after Close
// returns.
func (p *Projector[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()
	p.sub.Cancel()
}

// Message converts a listen error into text for the consumer.
func Message(collection string, err error) string {
	if docstore.IsPermissionDenied(err) {
		return fmt.Sprintf(PermissionHelp, collection)
	}
	return fmt.Sprintf("Could not load %s. Please refresh the page.", collection)
}

func documentID(doc docstore.Document) (string, error) {
	return doc.ID, nil
}
