package lifecycle

import (
	"context"
	"sync"
)

// Guard hands out liveness tokens per key. Beginning a new operation for a
// key supersedes every earlier token of that key.
type Guard struct {
	mu  sync.Mutex
	gen map[string]uint64
}

func NewGuard() *Guard {
	return &Guard{gen: make(map[string]uint64)}
}

type Token struct {
	guard *Guard
	key   string
	gen   uint64
}

func (g *Guard) Begin(key string) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen[key]++
	return Token{guard: g, key: key, gen: g.gen[key]}
}

// Invalidate supersedes outstanding tokens for key without starting work.
func (g *Guard) Invalidate(key string) {
	g.mu.Lock()
	g.gen[key]++
	g.mu.Unlock()
}

func (t Token) Alive() bool {
	if t.guard == nil {
		return false
	}
	t.guard.mu.Lock()
	defer t.guard.mu.Unlock()
	return t.guard.gen[t.key] == t.gen
}

// Go runs op with the scope's context and hands its result to apply only
// while the token for key is current and the scope is open. It reports
// whether apply ran.
func Go[T any](scope *Scope, guard *Guard, key string, op func(context.Context) (T, error), apply func(T, error)) <-chan bool {
	token := guard.Begin(key)
	applied := make(chan bool, 1)
	go func() {
		v, err := op(scope.Context())

		scope.applyMu.Lock()
		defer scope.applyMu.Unlock()
		if !scope.Alive() || !token.Alive() {
			applied <- false
			return
		}
		apply(v, err)
		applied <- true
	}()
	return applied
}
