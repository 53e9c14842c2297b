package livequery

import (
	"context"
	"testing"
	"time"

	"junks-backend/internal/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitUpdate(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Updates():
	case <-time.After(time.Second):
		t.Fatalf("no update for %s", sub)
	}
}

func waitState(t *testing.T, sub *Subscription, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sub.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", sub.State(), want)
}

func TestSubscribeDeliversFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	_, err := store.Add(ctx, docstore.CollectionServices, map[string]interface{}{"title": "House Wiring"})
	require.NoError(t, err)

	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionServices, OrderBy: "title"})
	defer sub.Cancel()

	waitUpdate(t, sub)
	snap, ok := sub.Latest()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Size())
	assert.Equal(t, Active, sub.State())
}

func TestSubscriptionKeepsLatestOnly(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionMessages})
	defer sub.Cancel()
	waitUpdate(t, sub)

	for i := 0; i < 5; i++ {
		_, err := store.Add(ctx, docstore.CollectionMessages, map[string]interface{}{"name": "visitor"})
		require.NoError(t, err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap, _ := sub.Latest(); snap.Size() == 5 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("latest snapshot never reached five messages")
}

func TestCancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.WithManualPush())
	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionBookings})
	waitUpdate(t, sub)

	_, err := store.Add(ctx, docstore.CollectionBookings, map[string]interface{}{"name": "Jane Doe"})
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	store.Push(docstore.CollectionBookings)

	time.Sleep(50 * time.Millisecond)
	snap, _ := sub.Latest()
	assert.Equal(t, 0, snap.Size())
	assert.Equal(t, Cancelled, sub.State())
	assert.NoError(t, sub.Err())

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed after cancel")
	}

	require.Eventually(t, func() bool {
		return store.ListenerCount(docstore.CollectionBookings) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPermissionDeniedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	store.SetRule(docstore.CollectionMessages, docstore.Rule{DenyRead: true})

	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionMessages})

	waitState(t, sub, Failed)
	assert.True(t, docstore.IsPermissionDenied(sub.Err()))

	store.SetRule(docstore.CollectionMessages, docstore.Rule{})
	_, err := store.Add(ctx, docstore.CollectionMessages, map[string]interface{}{"name": "Sipho"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Failed, sub.State())
	_, ok := sub.Latest()
	assert.False(t, ok)

	sub.Cancel()
	assert.Equal(t, Failed, sub.State(), "cancel after failure keeps the failure")
}

func TestFailureAfterActive(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionBookings})
	waitUpdate(t, sub)

	store.SetRule(docstore.CollectionBookings, docstore.Rule{DenyRead: true})
	waitState(t, sub, Failed)

	_, ok := sub.Latest()
	assert.True(t, ok, "the last good snapshot is retained")
}

func TestParentContextEndCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := docstore.NewMemory()
	m := NewManager(store, nil, nil)
	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionServices})
	waitUpdate(t, sub)

	cancel()
	waitState(t, sub, Cancelled)
	assert.NoError(t, sub.Err())
}

func TestSubscriptionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	m := NewManager(store, nil, nil)

	a := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionServices})
	b := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionServices, Limit: 1})
	defer b.Cancel()
	waitUpdate(t, a)
	waitUpdate(t, b)

	a.Cancel()
	_, err := store.Add(ctx, docstore.CollectionServices, map[string]interface{}{"title": "Solar"})
	require.NoError(t, err)

	waitUpdate(t, b)
	snap, _ := b.Latest()
	assert.Equal(t, 1, snap.Size())
	assert.Equal(t, Cancelled, a.State())
}

func TestSubscribeDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	m := NewManager(store, nil, nil)

	sub := m.SubscribeDocument(ctx, docstore.CollectionSettings, docstore.SettingsSiteID)
	defer sub.Cancel()
	waitUpdate(t, sub)
	snap, _ := sub.Latest()
	assert.Equal(t, 0, snap.Size())

	require.NoError(t, store.Merge(ctx, docstore.CollectionSettings, docstore.SettingsSiteID, map[string]interface{}{"phone": "081"}))
	waitUpdate(t, sub)
	snap, _ = sub.Latest()
	require.Equal(t, 1, snap.Size())
	assert.Equal(t, "081", snap.Documents[0].Fields["phone"])
}
