// Package lifecycle ties subscriptions and asynchronous work to the lifetime
// of their consumer so that nothing is delivered to a consumer that is gone.
package lifecycle

import (
	"context"
	"sync"
)

// Scope owns cancel functions and runs each exactly once when the scope
// closes, in reverse registration order. A scope closes on Close or when its
// parent context ends.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool

	// applyMu serialises result delivery with Close.
	applyMu sync.Mutex

	mu     sync.Mutex
	closed bool
	owned  []*owned
	byKey  map[string]*owned
}

type owned struct {
	once   sync.Once
	cancel func()
}

func (o *owned) run() { o.once.Do(o.cancel) }

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{ctx: ctx, cancel: cancel, byKey: make(map[string]*owned)}
	s.stop = context.AfterFunc(parent, s.Close)
	return s
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Own registers cancel. On a closed scope it runs immediately and Own
// reports false.
func (s *Scope) Own(cancel func()) bool {
	o := &owned{cancel: cancel}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		o.run()
		return false
	}
	s.owned = append(s.owned, o)
	s.mu.Unlock()
	return true
}

// Replace registers cancel under key and runs the canceler it replaces, for
// consumers whose query parameters changed.
func (s *Scope) Replace(key string, cancel func()) bool {
	o := &owned{cancel: cancel}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		o.run()
		return false
	}
	prev := s.byKey[key]
	s.byKey[key] = o
	if prev != nil {
		s.forget(prev)
	}
	s.owned = append(s.owned, o)
	s.mu.Unlock()

	if prev != nil {
		prev.run()
	}
	return true
}

// Cancel runs and drops the canceler registered under key, if any.
func (s *Scope) Cancel(key string) {
	s.mu.Lock()
	o := s.byKey[key]
	if o != nil {
		delete(s.byKey, key)
		s.forget(o)
	}
	s.mu.Unlock()

	if o != nil {
		o.run()
	}
}

// forget removes o from the owned list. s.mu must be held.
func (s *Scope) forget(o *owned) {
	for i, cur := range s.owned {
		if cur == o {
			s.owned = append(s.owned[:i], s.owned[i+1:]...)
			return
		}
	}
}

func (s *Scope) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close runs every owned canceler. It must not be called from an apply
// callback passed to Go.
func (s *Scope) Close() {
	s.applyMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.applyMu.Unlock()
		return
	}
	s.closed = true
	owned := s.owned
	s.owned = nil
	s.byKey = nil
	s.mu.Unlock()
	s.applyMu.Unlock()

	s.stop()
	s.cancel()
	for i := len(owned) - 1; i >= 0; i-- {
		owned[i].run()
	}
}
