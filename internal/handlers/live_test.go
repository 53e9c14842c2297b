package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"junks-backend/internal/docstore"
	"junks-backend/internal/icons"
	"junks-backend/internal/models"
	"junks-backend/internal/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	Name string
	Data []byte
}

// openStream connects to an event stream and returns the parsed events. The
// connection closes when the returned cancel func is called.
func openStream(t *testing.T, srv *httptest.Server, path string, admin bool) (<-chan sseEvent, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = []byte(strings.TrimPrefix(line, "data: "))
			case line == "" && ev.Name != "":
				events <- ev
				ev = sseEvent{}
			}
		}
	}()
	return events, cancel
}

// waitFor returns the first event for which match holds.
func waitFor(t *testing.T, events <-chan sseEvent, match func(sseEvent) bool) sseEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func serviceView(t *testing.T, ev sseEvent) projection.View[models.Service] {
	t.Helper()
	var v projection.View[models.Service]
	require.NoError(t, json.Unmarshal(ev.Data, &v))
	return v
}

func TestLiveServicesFollowsStore(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, docstore.CollectionServices, map[string]interface{}{"title": "Solar Installation"})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	events, cancel := openStream(t, srv, "/api/live/services", false)

	ev := waitFor(t, events, func(ev sseEvent) bool {
		v := serviceView(t, ev)
		return !v.IsLoading && len(v.Data) == 1 && v.Data[0].Icon != ""
	})
	view := serviceView(t, ev)
	assert.Equal(t, "Solar Installation", view.Data[0].Title)
	assert.Equal(t, "data:image/png;base64,SolarInstallation", view.Data[0].Icon)

	env.seed(t, docstore.CollectionServices, map[string]interface{}{"title": "House Wiring"})
	ev = waitFor(t, events, func(ev sseEvent) bool {
		return len(serviceView(t, ev).Data) == 2
	})
	assert.Equal(t, "House Wiring", serviceView(t, ev).Data[0].Title)

	cancel()
	require.Eventually(t, func() bool {
		return env.store.ListenerCount(docstore.CollectionServices) == 0
	}, 2*time.Second, 10*time.Millisecond, "closing the stream releases the listener")
}

// stalledGenerator never finishes icons for the stalled name until release
// is closed.
type stalledGenerator struct {
	stalled string
	release chan struct{}
}

func (g stalledGenerator) Generate(ctx context.Context, name string) (string, error) {
	if name == g.stalled {
		<-g.release
	}
	return iconGenerator{}.Generate(ctx, name)
}

func TestLiveServicesRenameWhileIconPending(t *testing.T) {
	env := newTestEnv(t)
	gen := stalledGenerator{stalled: "Old Title", release: make(chan struct{})}
	defer close(gen.release)
	env.server.Icons = icons.NewService(gen, icons.Options{}, env.server.Log, nil)
	id := env.seed(t, docstore.CollectionServices, map[string]interface{}{"title": "Old Title"})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	events, cancel := openStream(t, srv, "/api/live/services", false)
	defer cancel()
	waitFor(t, events, func(ev sseEvent) bool {
		v := serviceView(t, ev)
		return !v.IsLoading && len(v.Data) == 1
	})

	require.NoError(t, env.store.Update(context.Background(), docstore.CollectionServices, id, map[string]interface{}{"title": "New Title"}))
	ev := waitFor(t, events, func(ev sseEvent) bool {
		v := serviceView(t, ev)
		return len(v.Data) == 1 && v.Data[0].Icon != ""
	})
	view := serviceView(t, ev)
	assert.Equal(t, "New Title", view.Data[0].Title)
	assert.Equal(t, "data:image/png;base64,NewTitle", view.Data[0].Icon)
}

func TestShutdownStopsOpenStreams(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	services, cancelServices := openStream(t, srv, "/api/live/services", false)
	defer cancelServices()
	waitFor(t, services, func(ev sseEvent) bool { return !serviceView(t, ev).IsLoading })
	notes, cancelNotes := openStream(t, srv, "/api/admin/notifications", true)
	defer cancelNotes()
	waitFor(t, notes, func(ev sseEvent) bool { return ev.Name == "recent" })

	srv.Config.RegisterOnShutdown(env.server.StopStreams)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Config.Shutdown(ctx))

	require.Eventually(t, func() bool {
		return env.store.ListenerCount(docstore.CollectionServices) == 0
	}, 2*time.Second, 10*time.Millisecond, "stopped streams release their listeners")
	for range services {
	}
	for range notes {
	}
}

func TestLiveHomeSectionsFailIndependently(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		env.seed(t, docstore.CollectionServices, map[string]interface{}{"title": title})
	}
	env.store.SetRule(docstore.CollectionTestimonials, docstore.Rule{DenyRead: true})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	events, cancel := openStream(t, srv, "/api/live/home", false)
	defer cancel()

	type home struct {
		Services     projection.View[models.Service]     `json:"services"`
		Testimonials projection.View[models.Testimonial] `json:"testimonials"`
		Settings     SettingsView                        `json:"settings"`
	}
	var got home
	waitFor(t, events, func(ev sseEvent) bool {
		got = home{}
		require.NoError(t, json.Unmarshal(ev.Data, &got))
		return !got.Services.IsLoading && got.Testimonials.Error != "" && !got.Settings.IsLoading
	})
	assert.Len(t, got.Services.Data, 4)
	assert.Contains(t, got.Testimonials.Error, "Missing or insufficient permissions")
	assert.Equal(t, models.DefaultPhone, got.Settings.Data.Phone)
}

func TestAdminLiveDashboard(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 7; i++ {
		env.seed(t, docstore.CollectionMessages, map[string]interface{}{
			"name": "Visitor", "email": "v@example.com", "subject": "Hello", "message": "Call me",
			"status": "New", "createdAt": time.Date(2025, 7, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	events, cancel := openStream(t, srv, "/api/admin/live/dashboard", true)
	defer cancel()

	type dashboard struct {
		RecentBookings projection.View[models.Booking] `json:"recentBookings"`
		RecentMessages projection.View[models.Message] `json:"recentMessages"`
		MessageCount   projection.CountView            `json:"messageCount"`
		BookingCount   projection.CountView            `json:"bookingCount"`
	}
	var got dashboard
	waitFor(t, events, func(ev sseEvent) bool {
		got = dashboard{}
		require.NoError(t, json.Unmarshal(ev.Data, &got))
		return !got.RecentMessages.IsLoading && !got.MessageCount.IsLoading && !got.BookingCount.IsLoading
	})
	require.Len(t, got.RecentMessages.Data, 5)
	assert.Equal(t, 7, got.RecentMessages.Data[0].CreatedAt.Day())
	assert.Equal(t, 7, got.MessageCount.Count)
	assert.Equal(t, 0, got.BookingCount.Count)

	rec := env.do(t, http.MethodPost, "/api/bookings", map[string]interface{}{
		"name": "Jane Doe", "email": "jane@example.com", "phone": "0810000000", "service": "Other",
		"date": "2025-08-01", "time": "9:00 AM - 11:00 AM",
	}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	waitFor(t, events, func(ev sseEvent) bool {
		got = dashboard{}
		require.NoError(t, json.Unmarshal(ev.Data, &got))
		return got.BookingCount.Count == 1 && len(got.RecentBookings.Data) == 1
	})
	assert.Equal(t, "Jane Doe", got.RecentBookings.Data[0].Name)
	assert.Equal(t, 7, got.MessageCount.Count, "other sections keep their data")
}

func TestAdminNotificationsStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	events, cancel := openStream(t, srv, "/api/admin/notifications", true)
	defer cancel()
	waitFor(t, events, func(ev sseEvent) bool { return ev.Name == "recent" })

	rec := env.do(t, http.MethodPost, "/api/admin/services", map[string]interface{}{"title": "House Wiring", "description": "Full rewiring."}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	ev := waitFor(t, events, func(ev sseEvent) bool { return ev.Name == "notification" })
	assert.Contains(t, string(ev.Data), "Service added successfully.")
}

func TestAdminLiveMessagesLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.seed(t, docstore.CollectionMessages, map[string]interface{}{
			"name": "Visitor", "email": "v@example.com", "subject": "Hello", "message": "Call me",
			"status": "New", "createdAt": time.Date(2025, 7, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}

	rec := env.do(t, http.MethodGet, "/api/admin/live/messages?limit=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	events, cancel := openStream(t, srv, "/api/admin/live/messages?limit=2", true)
	defer cancel()

	var got projection.View[models.Message]
	waitFor(t, events, func(ev sseEvent) bool {
		got = projection.View[models.Message]{}
		require.NoError(t, json.Unmarshal(ev.Data, &got))
		return !got.IsLoading
	})
	require.Len(t, got.Data, 2)
	assert.Equal(t, 3, got.Data[0].CreatedAt.Day())
}
