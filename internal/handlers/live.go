package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"junks-backend/internal/docstore"
	"junks-backend/internal/icons"
	"junks-backend/internal/lifecycle"
	"junks-backend/internal/models"
	"junks-backend/internal/projection"
	"junks-backend/internal/transport"
)

// stream sends the value of the section opened by open as server-sent
// events until the client goes away or StopStreams is called. The section
// lives in a scope bound to the request.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, event string, open func(scope *lifecycle.Scope) projection.Section) {
	log := s.logWithRequest(r).With(slog.String("stream", event))
	if !transport.StartStream(w) {
		log.Error("live stream: streaming unsupported")
		transport.WriteError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	scope := lifecycle.NewScope(r.Context())
	defer scope.Close()
	section := open(scope)
	scope.Own(section.Close)

	s.Metrics.StreamOpened()
	defer s.Metrics.StreamClosed()
	log.Info("live stream: opened")

	heartbeat := time.NewTicker(s.heartbeat())
	defer heartbeat.Stop()

	if err := transport.WriteEvent(w, event, section.Value()); err != nil {
		log.Warn("live stream: write failed", slog.String("error", err.Error()))
		return
	}
	stopped := s.streamsDone()
	for {
		select {
		case <-scope.Done():
			log.Info("live stream: closed")
			return
		case <-stopped:
			log.Info("live stream: server shutting down")
			return
		case <-section.Changes():
			if err := transport.WriteEvent(w, event, section.Value()); err != nil {
				log.Warn("live stream: write failed", slog.String("error", err.Error()))
				return
			}
		case <-heartbeat.C:
			if err := transport.WriteComment(w, "ping"); err != nil {
				return
			}
		}
	}
}

func (s *Server) servicesSection(scope *lifecycle.Scope, q docstore.Query) projection.Section {
	p := projection.New(s.Live.Subscribe(scope.Context(), q), models.ParseService, s.Log)
	if s.Icons == nil {
		return p
	}
	return newServiceIcons(scope, p, s.Icons)
}

func (s *Server) testimonialsSection(scope *lifecycle.Scope, q docstore.Query) projection.Section {
	return projection.New(s.Live.Subscribe(scope.Context(), q), models.ParseTestimonial, s.Log)
}

func (s *Server) settingsSection(scope *lifecycle.Scope) projection.Section {
	sub := s.Live.SubscribeDocument(scope.Context(), docstore.CollectionSettings, docstore.SettingsSiteID)
	return settingsView{p: projection.New(sub, models.ParseSettings, s.Log)}
}

func (s *Server) LiveServices(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "services", func(scope *lifecycle.Scope) projection.Section {
		return s.servicesSection(scope, servicesQuery)
	})
}

func (s *Server) LiveTestimonials(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "testimonials", func(scope *lifecycle.Scope) projection.Section {
		return s.testimonialsSection(scope, testimonialsQuery)
	})
}

func (s *Server) LiveSettings(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "settings", s.settingsSection)
}

// LiveHome streams the home page: four services, up to ten testimonials and
// the site settings. Each part loads and fails on its own.
func (s *Server) LiveHome(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "home", func(scope *lifecycle.Scope) projection.Section {
		return projection.NewBoard().
			Add("services", s.servicesSection(scope, docstore.Query{Collection: docstore.CollectionServices, Limit: 4})).
			Add("testimonials", s.testimonialsSection(scope, docstore.Query{Collection: docstore.CollectionTestimonials, OrderBy: "name", Limit: 10})).
			Add("settings", s.settingsSection(scope))
	})
}

type SettingsView struct {
	Data      models.Settings `json:"data"`
	IsLoading bool            `json:"isLoading"`
	Error     string          `json:"error,omitempty"`
}

// settingsView presents the singleton settings document, falling back to
// defaults while it does not exist.
type settingsView struct {
	p *projection.Projector[models.Settings]
}

func (v settingsView) View() SettingsView {
	view := v.p.View()
	return SettingsView{Data: models.SettingsFrom(view.Data), IsLoading: view.IsLoading, Error: view.Error}
}

func (v settingsView) Value() interface{}       { return v.View() }
func (v settingsView) Changes() <-chan struct{} { return v.p.Changes() }
func (v settingsView) Close()                   { v.p.Close() }

// serviceIcons decorates a services projection with generated icons. Icons
// resolve in the background; a result is dropped when the stream has closed
// or the service was renamed or removed in the meantime.
type serviceIcons struct {
	p     *projection.Projector[models.Service]
	icons *icons.Service
	scope *lifecycle.Scope
	guard *lifecycle.Guard

	changes chan struct{}
	stop    chan struct{}
	once    sync.Once

	mu       sync.Mutex
	pending  map[string]string
	resolved map[string]string
}

func newServiceIcons(scope *lifecycle.Scope, p *projection.Projector[models.Service], svc *icons.Service) *serviceIcons {
	si := &serviceIcons{
		p:        p,
		icons:    svc,
		scope:    scope,
		guard:    lifecycle.NewGuard(),
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		pending:  make(map[string]string),
		resolved: make(map[string]string),
	}
	go si.run()
	return si
}

func (si *serviceIcons) run() {
	for {
		select {
		case <-si.stop:
			return
		case <-si.p.Changes():
			si.resolve()
			si.signal()
		}
	}
}

func (si *serviceIcons) resolve() {
	services := si.p.View().Data
	listed := make(map[string]bool, len(services))
	for _, svc := range services {
		listed[svc.ID] = true
	}
	si.mu.Lock()
	for id := range si.pending {
		if !listed[id] {
			si.guard.Invalidate(id)
			si.scope.Cancel(iconKey(id))
			delete(si.pending, id)
		}
	}
	si.mu.Unlock()

	for _, svc := range services {
		id, title := svc.ID, svc.Title

		si.mu.Lock()
		_, done := si.resolved[title]
		requested := si.pending[id] == title
		si.mu.Unlock()
		if done || requested {
			continue
		}
		if uri, ok := si.icons.Cached(title); ok {
			si.mu.Lock()
			si.resolved[title] = uri
			si.mu.Unlock()
			continue
		}

		si.mu.Lock()
		si.pending[id] = title
		si.mu.Unlock()
		// A rename stops the wait for the icon of the old title.
		ctx, cancel := context.WithCancel(si.scope.Context())
		si.scope.Replace(iconKey(id), cancel)
		lifecycle.Go(si.scope, si.guard, id, func(context.Context) (string, error) {
			defer cancel()
			return si.icons.Icon(ctx, title), nil
		}, func(uri string, _ error) {
			si.mu.Lock()
			si.resolved[title] = uri
			delete(si.pending, id)
			si.mu.Unlock()
			si.signal()
		})
	}
}

func iconKey(id string) string { return "icon:" + id }

func (si *serviceIcons) signal() {
	select {
	case si.changes <- struct{}{}:
	default:
	}
}

func (si *serviceIcons) View() projection.View[models.Service] {
	view := si.p.View()
	si.mu.Lock()
	defer si.mu.Unlock()
	for i := range view.Data {
		view.Data[i].Icon = si.resolved[view.Data[i].Title]
	}
	return view
}

func (si *serviceIcons) Value() interface{}       { return si.View() }
func (si *serviceIcons) Changes() <-chan struct{} { return si.changes }

func (si *serviceIcons) Close() {
	si.once.Do(func() {
		close(si.stop)
		si.p.Close()
	})
}
