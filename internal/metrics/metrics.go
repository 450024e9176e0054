package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// LookupModeBatch labels a single batched lookup covering a whole id set.
	LookupModeBatch = "batch"
	// LookupModeSingle labels one per-id lookup.
	LookupModeSingle = "single"
)

// Metrics records request and enrichment activity. A nil *Metrics is a no-op.
type Metrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	lookups      *prometheus.CounterVec
	placeholders *prometheus.CounterVec
}

// New registers the service metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_lookups_total",
		Help: "Enrichment lookups issued, by source and mode.",
	}, []string{"source", "mode"})
	placeholders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_placeholders_total",
		Help: "Enrichment results replaced by a placeholder.",
	}, []string{"source"})
	reg.MustRegister(requests, latency, lookups, placeholders)
	return &Metrics{
		requests:     requests,
		latency:      latency,
		lookups:      lookups,
		placeholders: placeholders,
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncLookup counts a lookup against source.
func (m *Metrics) IncLookup(source, mode string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.WithLabelValues(normalizeLabel(source), mode).Inc()
}

// IncPlaceholder counts a placeholder substitution for source.
func (m *Metrics) IncPlaceholder(source string) {
	if m == nil || m.placeholders == nil {
		return
	}
	m.placeholders.WithLabelValues(normalizeLabel(source)).Inc()
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
