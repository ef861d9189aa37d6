package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_paper_search_new")

	assert.NotNil(t, m.SearchesStarted)
	assert.NotNil(t, m.SearchesCompleted)
	assert.NotNil(t, m.SearchesFailed)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.PapersDiscovered)
	assert.NotNil(t, m.PapersBySource)
	assert.NotNil(t, m.SourceRequestsTotal)
	assert.NotNil(t, m.SourceRequestsFailed)
	assert.NotNil(t, m.SourcesInFlight)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
	assert.NotNil(t, m.RateLimitWaits)
	assert.NotNil(t, m.RateLimitTimeouts)
	assert.NotNil(t, m.DownloadsTotal)
}

func TestRecordSearchLifecycle(t *testing.T) {
	m := NewMetrics("test_search_lifecycle")

	m.RecordSearchStarted("arxiv")
	m.RecordSearchCompleted("arxiv", 25, 1.2)
	m.RecordSearchFailed("pubmed", 0.4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesStarted.WithLabelValues("arxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesCompleted.WithLabelValues("arxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("pubmed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("arxiv")))
}

func TestRecordPapersDiscovered(t *testing.T) {
	m := NewMetrics("test_papers_discovered")

	m.RecordPapersDiscovered("openalex", 42)
	m.RecordPapersDiscovered("arxiv", 8)
	m.RecordPaperDuplicates(3)

	assert.Equal(t, float64(50), testutil.ToFloat64(m.PapersDiscovered))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.PapersBySource.WithLabelValues("openalex")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PapersDuplicate))
}

func TestRecordSourceRequests(t *testing.T) {
	m := NewMetrics("test_source_requests")

	m.RecordSourceRequest("arxiv", "search", 0.3)
	m.RecordSourceRequestFailed("arxiv", "search", "timeout")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("arxiv", "search")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.SourceRequestsFailed.WithLabelValues("arxiv", "search", "timeout")))
}

func TestRecordCache(t *testing.T) {
	m := NewMetrics("test_cache_counters")

	m.RecordCacheHit("searches")
	m.RecordCacheHit("searches")
	m.RecordCacheMiss("citations")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHits.WithLabelValues("searches")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses.WithLabelValues("citations")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CacheMisses.WithLabelValues("searches")))
}

func TestRecordRateLimit(t *testing.T) {
	m := NewMetrics("test_rate_limit")

	m.RecordRateLimitWait("arxiv", 0.05)
	m.RecordRateLimitTimeout("arxiv")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitTimeouts.WithLabelValues("arxiv")))
}

func TestRecordDownloads(t *testing.T) {
	m := NewMetrics("test_downloads")

	m.RecordDownload("arxiv", 1<<20)
	m.RecordDownloadFailed("arxiv")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("arxiv", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("arxiv", "failure")))
}

func TestSourcesInFlightGauge(t *testing.T) {
	m := NewMetrics("test_in_flight")

	m.SourcesInFlight.Inc()
	m.SourcesInFlight.Inc()
	m.SourcesInFlight.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourcesInFlight))
}
