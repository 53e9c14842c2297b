package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeClosesInReverseOrderOnce(t *testing.T) {
	s := NewScope(context.Background())
	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	s.Own(record("services"))
	s.Own(record("bookings"))

	s.Close()
	s.Close()

	assert.Equal(t, []string{"bookings", "services"}, order)
	assert.False(t, s.Alive())
	assert.Error(t, s.Context().Err())
}

func TestScopeOwnAfterCloseCancelsImmediately(t *testing.T) {
	s := NewScope(context.Background())
	s.Close()

	called := false
	assert.False(t, s.Own(func() { called = true }))
	assert.True(t, called)
}

func TestScopeClosesWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewScope(parent)
	closed := make(chan struct{})
	s.Own(func() { close(closed) })

	cancel()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("scope did not close with its parent")
	}
	assert.False(t, s.Alive())
}

func TestScopeReplace(t *testing.T) {
	s := NewScope(context.Background())
	first, second := 0, 0
	s.Replace("bookings", func() { first++ })
	s.Replace("bookings", func() { second++ })
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, s.owned, 1, "replaced canceler is no longer held")

	for i := 0; i < 10; i++ {
		s.Replace("bookings", func() {})
	}
	assert.Len(t, s.owned, 1)
	assert.Equal(t, 1, second)

	s.Close()
	assert.Equal(t, 1, first, "replaced canceler runs once")
	assert.Equal(t, 1, second)
}

func TestScopeCancelKey(t *testing.T) {
	s := NewScope(context.Background())
	other, keyed := 0, 0
	s.Own(func() { other++ })
	s.Replace("icon:a", func() { keyed++ })

	s.Cancel("icon:a")
	assert.Equal(t, 1, keyed)
	assert.Len(t, s.owned, 1)

	s.Cancel("icon:a")
	s.Cancel("icon:missing")
	s.Close()
	assert.Equal(t, 1, keyed)
	assert.Equal(t, 1, other)
}

func TestGuardSupersedes(t *testing.T) {
	g := NewGuard()
	a := g.Begin("icon:House Wiring")
	b := g.Begin("icon:House Wiring")
	other := g.Begin("icon:Solar")

	assert.False(t, a.Alive())
	assert.True(t, b.Alive())
	assert.True(t, other.Alive())

	g.Invalidate("icon:Solar")
	assert.False(t, other.Alive())
	assert.False(t, Token{}.Alive())
}

func TestGoAppliesWhileAlive(t *testing.T) {
	s := NewScope(context.Background())
	defer s.Close()
	g := NewGuard()

	var got string
	applied := Go(s, g, "icon", func(context.Context) (string, error) {
		return "data:image/png;base64,AAAA", nil
	}, func(v string, err error) {
		require.NoError(t, err)
		got = v
	})
	assert.True(t, <-applied)
	assert.Equal(t, "data:image/png;base64,AAAA", got)
}

func TestGoDiscardsAfterScopeClose(t *testing.T) {
	s := NewScope(context.Background())
	g := NewGuard()
	release := make(chan struct{})

	applied := Go(s, g, "icon", func(ctx context.Context) (string, error) {
		<-release
		return "late", ctx.Err()
	}, func(string, error) {
		t.Error("apply ran after the scope closed")
	})

	s.Close()
	close(release)
	assert.False(t, <-applied)
}

func TestGoDiscardsSupersededResult(t *testing.T) {
	s := NewScope(context.Background())
	defer s.Close()
	g := NewGuard()
	release := make(chan struct{})

	var results []string
	stale := Go(s, g, "icon", func(context.Context) (string, error) {
		<-release
		return "stale", nil
	}, func(v string, _ error) { results = append(results, v) })

	fresh := Go(s, g, "icon", func(context.Context) (string, error) {
		return "", errors.New("generation failed")
	}, func(_ string, err error) { results = append(results, err.Error()) })

	assert.True(t, <-fresh)
	close(release)
	assert.False(t, <-stale)
	assert.Equal(t, []string{"generation failed"}, results)
}
