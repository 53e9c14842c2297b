// Package livequery turns document store listeners into subscriptions that
// keep only the newest snapshot. Each subscription runs a single pump
// goroutine; consumers are signalled on Updates and pull Latest.
package livequery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"junks-backend/internal/docstore"
	"junks-backend/internal/metrics"
)

type State int

const (
	Idle State = iota
	Subscribing
	Active
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

func (s State) Terminal() bool {
	return s == Failed || s == Cancelled
}

type Manager struct {
	store   docstore.Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewManager(store docstore.Store, log *slog.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, log: log, metrics: m}
}

// Subscribe opens a live query. The subscription ends when Cancel is called,
// when ctx ends, or when the store reports an error.
func (m *Manager) Subscribe(ctx context.Context, q docstore.Query) *Subscription {
	sub := m.newSubscription(ctx, q.Collection, q.String())
	go sub.pump(func(ctx context.Context) (docstore.Stream, error) {
		return m.store.Listen(ctx, q)
	})
	return sub
}

// SubscribeDocument opens a live listener on a single document. Snapshots
// carry zero documents while it does not exist.
func (m *Manager) SubscribeDocument(ctx context.Context, collection, id string) *Subscription {
	sub := m.newSubscription(ctx, collection, collection+"/"+id)
	go sub.pump(func(ctx context.Context) (docstore.Stream, error) {
		return m.store.ListenDocument(ctx, collection, id)
	})
	return sub
}

func (m *Manager) newSubscription(parent context.Context, collection, desc string) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		collection: collection,
		desc:       desc,
		ctx:        ctx,
		cancel:     cancel,
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		log:        m.log.With(slog.String("query", desc)),
		metrics:    m.metrics,
		state:      Subscribing,
	}
	m.metrics.SubscriptionOpened(collection)
	return sub
}

type Subscription struct {
	collection string
	desc       string
	ctx        context.Context
	cancel     context.CancelFunc
	updates    chan struct{}
	done       chan struct{}
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu        sync.Mutex
	state     State
	latest    docstore.Snapshot
	hasLatest bool
	err       error
}

func (s *Subscription) pump(open func(context.Context) (docstore.Stream, error)) {
	stream, err := open(s.ctx)
	if err != nil {
		s.finish(err)
		return
	}
	defer stream.Stop()

	for {
		snap, err := stream.Next(s.ctx)
		if err != nil {
			s.finish(err)
			return
		}
		if !s.deliver(snap) {
			return
		}
	}
}

func (s *Subscription) deliver(snap docstore.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.latest = snap
	s.hasLatest = true
	s.state = Active
	s.metrics.SnapshotReceived(s.collection)
	select {
	case s.updates <- struct{}{}:
	default:
	}
	return true
}

// finish records how the pump ended. Errors caused by cancellation are not
// failures.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.ctx.Err() != nil || errors.Is(err, docstore.ErrClosed) {
		s.state = Cancelled
	} else {
		s.state = Failed
		s.err = err
	}
	state := s.state
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	s.metrics.SubscriptionClosed(s.collection)
	if state == Failed {
		reason := "error"
		if docstore.IsPermissionDenied(err) {
			reason = "permission_denied"
		}
		s.metrics.SubscriptionFailed(s.collection, reason)
		s.log.Warn("livequery listen: failed", slog.String("reason", reason), slog.String("error", err.Error()))
	}
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Cancel stops pushes and releases the listener. No snapshot is recorded
// after Cancel returns. Calling it again has no effect.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = Cancelled
	close(s.done)
	select {
	case <-s.updates:
	default:
	}
	s.mu.Unlock()

	s.cancel()
	s.metrics.SubscriptionClosed(s.collection)
}

// Updates signals that Latest, Err or State changed. Signals coalesce.
func (s *Subscription) Updates() <-chan struct{} { return s.updates }

// Done is closed once the subscription reaches Failed or Cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Latest() (docstore.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) Collection() string { return s.collection }

func (s *Subscription) String() string { return s.desc }
