// Package observability provides logging and metrics support for the paper
// search service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, sources, cache, and rate limiting
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("query", query).Msg("search started")
//
// Add search context to a logger:
//
//	logger = observability.WithSearchContext(logger, query, "arxiv")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("paper_search")
//
// Record metrics:
//
//	metrics.RecordSearchStarted("arxiv")
//	metrics.RecordCacheHit("searches")
//	metrics.RecordPapersDiscovered("openalex", 42)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - query: User's search query
//   - source: Paper source (arxiv, openalex, etc.)
//   - paper_id: Source-scoped paper identifier
//   - doi: Digital Object Identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
