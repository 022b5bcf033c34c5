package pricing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one enrichment run.
type Metrics struct {
	Registry      *prometheus.Registry
	SourceQueries *prometheus.CounterVec
	CacheRequests *prometheus.CounterVec
	ItemsTotal    *prometheus.CounterVec
	ItemDuration  prometheus.Histogram
	FallbackRates prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	sourceQueries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_source_queries_total",
			Help: "Price source queries by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	cacheRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cache_requests_total",
			Help: "Cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_items_total",
			Help: "Catalog items processed by outcome.",
		},
		[]string{"outcome"},
	)
	itemDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enricher_item_duration_seconds",
			Help:    "Wall time spent pricing one catalog item.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fallbackRates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enricher_fx_fallback_total",
			Help: "Conversions that used the static fallback rate table.",
		},
	)

	registry.MustRegister(sourceQueries, cacheRequests, itemsTotal, itemDuration, fallbackRates)

	return &Metrics{
		Registry:      registry,
		SourceQueries: sourceQueries,
		CacheRequests: cacheRequests,
		ItemsTotal:    itemsTotal,
		ItemDuration:  itemDuration,
		FallbackRates: fallbackRates,
	}
}

// IncSourceQuery records one source query outcome.
func (m *Metrics) IncSourceQuery(source, outcome string) {
	if m == nil {
		return
	}
	m.SourceQueries.WithLabelValues(source, outcome).Inc()
}

// IncCacheRequest records a cache hit or miss.
func (m *Metrics) IncCacheRequest(namespace, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(namespace, result).Inc()
}

// IncItem records one processed item's outcome.
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveItemDuration records how long one item took.
func (m *Metrics) ObserveItemDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ItemDuration.Observe(d.Seconds())
}

// IncFallbackRate records a conversion on the static table.
func (m *Metrics) IncFallbackRate() {
	if m == nil {
		return
	}
	m.FallbackRates.Inc()
}
