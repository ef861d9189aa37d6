package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper search service.
// Metrics are organized by subsystem: searches, papers, sources, cache, and
// rate limiting. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// SearchesStarted counts searches initiated, labeled by paper source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by paper source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by paper source.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersDiscovered counts the total number of papers returned across all searches.
	PapersDiscovered prometheus.Counter

	// PapersDuplicate counts the total number of duplicate papers collapsed during deduplication.
	PapersDuplicate prometheus.Counter

	// PapersBySource counts papers returned, labeled by paper source.
	PapersBySource *prometheus.CounterVec

	// SourceRequestsTotal counts operations dispatched to sources, labeled by source and operation.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed source operations, labeled by source, operation, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes source operation duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourcesInFlight gauges how many source calls hold a concurrency slot right now.
	SourcesInFlight prometheus.Gauge

	// CacheHits counts cache hits, labeled by entry kind.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses, labeled by entry kind.
	CacheMisses *prometheus.CounterVec

	// RateLimitWaits observes how long admissions waited on the limiter, labeled by source.
	RateLimitWaits *prometheus.HistogramVec

	// RateLimitTimeouts counts admissions abandoned at the acquire deadline, labeled by source.
	RateLimitTimeouts *prometheus.CounterVec

	// DownloadsTotal counts PDF downloads, labeled by source and outcome.
	DownloadsTotal *prometheus.CounterVec

	// DownloadBytes observes downloaded PDF sizes in bytes.
	DownloadBytes prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of paper searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of paper searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of paper searches that failed by source",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),

		// Papers
		PapersDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_discovered_total",
			Help:      "Total number of papers returned",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers collapsed",
		}),
		PapersBySource: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_by_source_total",
			Help:      "Total number of papers returned by source",
		}, []string{"source"}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of operations dispatched to paper sources",
		}, []string{"source", "operation"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed paper source operations",
		}, []string{"source", "operation", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of paper source operations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "operation"}),
		SourcesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_in_flight",
			Help:      "Number of source calls currently holding a concurrency slot",
		}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by entry kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by entry kind",
		}, []string{"kind"}),

		// Rate limiting
		RateLimitWaits: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for rate limiter admission by source",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"source"}),
		RateLimitTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_timeouts_total",
			Help:      "Total number of admissions abandoned at the acquire deadline",
		}, []string{"source"}),

		// Downloads
		DownloadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of PDF downloads by source and outcome",
		}, []string{"source", "outcome"}),
		DownloadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_bytes",
			Help:      "Downloaded PDF sizes in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
	}
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, paperCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPapersDiscovered records papers returned from a source.
func (m *Metrics) RecordPapersDiscovered(source string, count int) {
	m.PapersDiscovered.Add(float64(count))
	m.PapersBySource.WithLabelValues(source).Add(float64(count))
}

// RecordPaperDuplicates records duplicate papers collapsed during merge.
func (m *Metrics) RecordPaperDuplicates(count int) {
	m.PapersDuplicate.Add(float64(count))
}

// RecordSourceRequest records an operation dispatched to a source.
func (m *Metrics) RecordSourceRequest(source, operation string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, operation).Inc()
	m.SourceRequestDuration.WithLabelValues(source, operation).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed source operation.
func (m *Metrics) RecordSourceRequestFailed(source, operation, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, operation, errorType).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(kind string) {
	m.CacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(kind string) {
	m.CacheMisses.WithLabelValues(kind).Inc()
}

// RecordRateLimitWait records how long an admission waited on the limiter.
func (m *Metrics) RecordRateLimitWait(source string, waitSeconds float64) {
	m.RateLimitWaits.WithLabelValues(source).Observe(waitSeconds)
}

// RecordRateLimitTimeout records an admission abandoned at the deadline.
func (m *Metrics) RecordRateLimitTimeout(source string) {
	m.RateLimitTimeouts.WithLabelValues(source).Inc()
}

// RecordDownload records a completed PDF download.
func (m *Metrics) RecordDownload(source string, sizeBytes int64) {
	m.DownloadsTotal.WithLabelValues(source, "success").Inc()
	m.DownloadBytes.Observe(float64(sizeBytes))
}

// RecordDownloadFailed records a failed PDF download.
func (m *Metrics) RecordDownloadFailed(source string) {
	m.DownloadsTotal.WithLabelValues(source, "failure").Inc()
}
