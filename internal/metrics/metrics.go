// Package metrics holds the Prometheus collectors for the service. Every
// recording method is safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Live query metrics
	SubscriptionsActive *prometheus.GaugeVec
	SnapshotsDelivered  *prometheus.CounterVec
	SubscriptionsFailed *prometheus.CounterVec

	// Mutation metrics
	Mutations *prometheus.CounterVec
	Uploads   *prometheus.CounterVec

	// Icon metrics
	IconLookups *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	StreamsOpen     prometheus.Gauge
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SubscriptionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "livequery_subscriptions_active",
			Help:      "Number of open live query subscriptions",
		}, []string{"collection"}),
		SnapshotsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "livequery_snapshots_total",
			Help:      "Total number of snapshots received from the document store",
		}, []string{"collection"}),
		SubscriptionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "livequery_failures_total",
			Help:      "Total number of subscriptions that ended in an error",
		}, []string{"collection", "reason"}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total number of document store writes",
		}, []string{"operation", "collection", "status"}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of blob uploads",
		}, []string{"status"}),
		IconLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icon_lookups_total",
			Help:      "Icon lookups by outcome",
		}, []string{"result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		StreamsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_streams_open",
			Help:      "Number of connected event streams",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SubscriptionOpened(collection string) {
	if m == nil {
		return
	}
	m.SubscriptionsActive.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionClosed(collection string) {
	if m == nil {
		return
	}
	m.SubscriptionsActive.WithLabelValues(collection).Dec()
}

func (m *Metrics) SnapshotReceived(collection string) {
	if m == nil {
		return
	}
	m.SnapshotsDelivered.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionFailed(collection, reason string) {
	if m == nil {
		return
	}
	m.SubscriptionsFailed.WithLabelValues(collection, reason).Inc()
}

func (m *Metrics) MutationDone(operation, collection string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, collection, outcome(err)).Inc()
}

func (m *Metrics) UploadDone(err error) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) IconLookup(result string) {
	if m == nil {
		return
	}
	m.IconLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamsOpen.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.StreamsOpen.Dec()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
