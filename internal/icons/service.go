// Package icons provides generated service icons, memoized per service name.
package icons

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"junks-backend/internal/cache"
	"junks-backend/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// FallbackIcon is shown when no icon could be generated.
const FallbackIcon = "data:image/svg+xml;utf8," +
	"<svg xmlns='http://www.w3.org/2000/svg' width='64' height='64' viewBox='0 0 24 24' fill='none' " +
	"stroke='%23ef4444' stroke-width='2' stroke-linecap='round' stroke-linejoin='round'>" +
	"<circle cx='12' cy='12' r='10'/><line x1='12' y1='8' x2='12' y2='12'/><line x1='12' y1='16' x2='12.01' y2='16'/></svg>"

type Options struct {
	Size int
	TTL  time.Duration
	// Shared is an optional second level shared between instances.
	Shared cache.Cache
}

type Service struct {
	gen     Generator
	memo    *expirable.LRU[string, string]
	shared  cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewService(gen Generator, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Shared == nil {
		opts.Shared = cache.NewNoop()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gen:     gen,
		memo:    expirable.NewLRU[string, string](opts.Size, nil, opts.TTL),
		shared:  opts.Shared,
		ttl:     opts.TTL,
		log:     log,
		metrics: m,
	}
}

func cacheKey(name string) string {
	return "icon:" + strings.ToLower(strings.TrimSpace(name))
}

// Icon returns the icon for a service name. Concurrent requests for one name
// share a single generation. Failures return FallbackIcon and are not
// remembered. A caller whose ctx ends stops waiting and gets FallbackIcon
// while the shared generation carries on.
func (s *Service) Icon(ctx context.Context, serviceName string) string {
	key := cacheKey(serviceName)
	if uri, ok := s.memo.Get(key); ok {
		s.metrics.IconLookup("hit")
		return uri
	}
	if s.gen == nil {
		s.metrics.IconLookup("disabled")
		return FallbackIcon
	}

	// The generation is detached from ctx so that callers sharing it are not
	// cut off when one of them gives up.
	gen := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		if raw, ok, err := s.shared.Get(gen, key); err == nil && ok {
			s.metrics.IconLookup("shared_hit")
			s.memo.Add(key, string(raw))
			return string(raw), nil
		}
		uri, err := s.gen.Generate(gen, serviceName)
		if err != nil {
			return nil, err
		}
		if err := s.shared.Set(gen, key, []byte(uri), s.ttl); err != nil {
			s.log.Warn("icons cache: set failed", slog.String("error", err.Error()))
		}
		s.metrics.IconLookup("generated")
		s.memo.Add(key, uri)
		return uri, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.metrics.IconLookup("abandoned")
		return FallbackIcon
	}
	if res.Err != nil {
		s.metrics.IconLookup("failed")
		s.log.Warn("icons generate: failed", slog.String("service", serviceName), slog.String("error", res.Err.Error()))
		return FallbackIcon
	}
	return res.Val.(string)
}

// Cached reports a memoized icon without generating one.
func (s *Service) Cached(serviceName string) (string, bool) {
	return s.memo.Get(cacheKey(serviceName))
}
