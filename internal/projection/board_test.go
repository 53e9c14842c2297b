package projection

import (
	"context"
	"testing"

	"junks-backend/internal/docstore"
	"junks-backend/internal/livequery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardSectionsFailIndependently(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	_, err := store.Add(ctx, docstore.CollectionBookings, map[string]interface{}{"title": "Jane Doe"})
	require.NoError(t, err)
	store.SetRule(docstore.CollectionMessages, docstore.Rule{DenyRead: true})

	m := livequery.NewManager(store, nil, nil)
	recent := New(m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionBookings, Limit: 5}), parseService, nil)
	messages := New(m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionMessages, Limit: 5}), parseService, nil)
	count := NewCounter(m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionBookings}))

	board := NewBoard().
		Add("recentBookings", recent).
		Add("recentMessages", messages).
		Add("bookingCount", count)
	defer board.Close()

	eventually(t, func() bool {
		return !recent.View().IsLoading && messages.View().Error != "" && !count.View().IsLoading
	})

	view := board.View()
	assert.Len(t, view["recentBookings"].(View[service]).Data, 1)
	assert.Empty(t, view["recentBookings"].(View[service]).Error)
	assert.NotEmpty(t, view["recentMessages"].(View[service]).Error)
	assert.Equal(t, 1, view["bookingCount"].(CountView).Count)
}

func TestBoardCloseClosesSections(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	m := livequery.NewManager(store, nil, nil)

	sub := m.Subscribe(ctx, docstore.Query{Collection: docstore.CollectionMessages})
	board := NewBoard().Add("messages", NewCounter(sub))
	board.Close()
	board.Close()

	assert.Equal(t, livequery.Cancelled, sub.State())
}
