package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for upstream fetches and listing passes.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	SkippedTotal      *prometheus.CounterVec
	PassesTotal       *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobooks_upstream_requests_total",
			Help: "Total upstream HTTP requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audiobooks_upstream_request_duration_seconds",
			Help:    "Latency of upstream page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audiobooks_items_scraped_total",
			Help: "Total number of books accepted from listing pages.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobooks_articles_skipped_total",
			Help: "Listing articles excluded from results, by reason.",
		},
		[]string{"reason"},
	)
	passes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobooks_listing_passes_total",
			Help: "Listing passes run, by listing.",
		},
		[]string{"listing"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobooks_errors_total",
			Help: "Total number of upstream fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, skipped, passes, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		SkippedTotal:      skipped,
		PassesTotal:       passes,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an upstream request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the accepted books counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncSkipped counts an article left out of a pass.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

// IncPass counts one listing pass.
func (m *Metrics) IncPass(listing string) {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(listing).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
