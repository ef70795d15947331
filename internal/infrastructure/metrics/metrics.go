// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const namespace = "docqa"

// Metrics holds every instrument on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	sessions       prometheus.GaugeFunc
	streamTerminal *prometheus.CounterVec
	kbSkipped      prometheus.Counter
	kbFileEvents   *prometheus.CounterVec
}

// New registers the instruments. sessionCount backs the sessions gauge and may be nil.
func New(sessionCount func() int) *Metrics {
	if sessionCount == nil {
		sessionCount = func() int { return 0 }
	}

	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to chunk, embed and index an uploaded document.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		sessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live document sessions.",
		}, func() float64 { return float64(sessionCount()) }),
		streamTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_terminal_total",
			Help:      "Answer streams by terminal state.",
		}, []string{"state"}),
		kbSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kb_search_skipped_total",
			Help:      "Knowledge base files skipped during search because of an error.",
		}),
		kbFileEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kb_file_events_total",
			Help:      "Knowledge base folder changes by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.ingestDuration,
		m.sessions,
		m.streamTerminal,
		m.kbSkipped,
		m.kbFileEvents,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveIngest records how long an ingestion took.
func (m *Metrics) ObserveIngest(d time.Duration) {
	m.ingestDuration.Observe(d.Seconds())
}

// ObserveStreamEnd counts a stream by its terminal record kind.
func (m *Metrics) ObserveStreamEnd(kind entities.RecordKind) {
	m.streamTerminal.WithLabelValues(kind.String()).Inc()
}

// ObserveKBSkipped counts knowledge base files skipped by a search.
func (m *Metrics) ObserveKBSkipped(n int) {
	if n > 0 {
		m.kbSkipped.Add(float64(n))
	}
}

// ObserveFileEvent counts one knowledge base folder change.
func (m *Metrics) ObserveFileEvent(op ports.FileOperation) {
	m.kbFileEvents.WithLabelValues(op.String()).Inc()
}
