// Package dispatch implements the concurrent, rate-limited, cached fan-out
// of queries across registered paper sources.
//
// One Engine instance is constructed per process and shared by reference.
// Every operation routes through the same shape: resolve the capability-
// matching sources, check the cache, acquire rate-limiter admission, call
// the adapter, record the per-source outcome. One source's failure never
// cancels or fails its siblings; the caller always receives the papers that
// succeeded together with the list of which sources failed and why.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/ratelimit"
	"github.com/helixir/paper-search-service/internal/sources"
)

// Config holds the dispatch engine settings.
type Config struct {
	// SearchTTL is the cache lifetime for search responses.
	SearchTTL time.Duration

	// CitationTTL is the cache lifetime for citation lookups.
	CitationTTL time.Duration

	// AuthorThreshold is the author overlap score used when deduplication
	// is requested. Zero uses the dedup package default.
	AuthorThreshold float64
}

// DefaultConfig returns a Config with the standard TTLs.
func DefaultConfig() Config {
	return Config{
		SearchTTL:   30 * time.Minute,
		CitationTTL: 15 * time.Minute,
	}
}

// Engine coordinates searches across the source registry. All mutable state
// it touches (cache, rate limiter) is internally synchronized; the engine
// itself is safe for concurrent use.
type Engine struct {
	registry *sources.Registry
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	metrics  *observability.Metrics
	logger   zerolog.Logger
	cfg      Config
}

// NewEngine creates a dispatch engine over the given collaborators.
func NewEngine(
	registry *sources.Registry,
	limiter *ratelimit.Limiter,
	c *cache.Cache,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg Config,
) *Engine {
	if cfg.SearchTTL == 0 {
		cfg.SearchTTL = DefaultConfig().SearchTTL
	}
	if cfg.CitationTTL == 0 {
		cfg.CitationTTL = DefaultConfig().CitationTTL
	}
	return &Engine{
		registry: registry,
		limiter:  limiter,
		cache:    c,
		metrics:  metrics,
		logger:   logger.With().Str("component", "dispatch").Logger(),
		cfg:      cfg,
	}
}

// Registry exposes read access to the source registry.
func (e *Engine) Registry() *sources.Registry {
	return e.registry
}

// Outcome is the per-source result of one fanned-out operation.
type Outcome struct {
	// Source is the source id this outcome belongs to.
	Source string

	// Papers is how many papers the source contributed.
	Papers int

	// FromCache is true when the response was served without a network call.
	FromCache bool

	// Duration is how long the source call took, including rate-limiter wait.
	Duration time.Duration

	// Err is the source's failure, nil on success.
	Err error
}

// SearchOptions narrows and shapes a federated search.
type SearchOptions struct {
	// Sources optionally restricts the search to these source ids. An id
	// that is not registered, or is registered without search capability,
	// produces a failure outcome for that id and an otherwise unaffected
	// search. Empty searches every source with search capability.
	Sources []string

	// Dedup collapses duplicate papers across sources after the merge.
	// Off by default.
	Dedup bool
}

// SearchResult is the aggregate of one federated search.
type SearchResult struct {
	// Papers is the merged, sorted result set.
	Papers []domain.Paper

	// Outcomes holds one entry per targeted source, in dispatch order.
	Outcomes []Outcome

	// Duplicates is how many papers deduplication collapsed. Zero when
	// deduplication was not requested.
	Duplicates int
}

// Failures returns the outcomes that carry an error.
func (r *SearchResult) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// target pairs a requested source id with its resolved source, or with the
// resolution error when the id cannot serve the operation.
type target struct {
	id     string
	source sources.Source
	err    error
}

// resolveTargets maps the allow-list (or the whole registry) onto sources
// holding the needed capability. Resolution failures become targets with a
// pre-set error so they surface as per-source outcomes, not call failures.
func (e *Engine) resolveTargets(ids []string, capability sources.Capability) []target {
	if len(ids) == 0 {
		matched := e.registry.WithCapability(capability)
		targets := make([]target, len(matched))
		for i, s := range matched {
			targets[i] = target{id: s.ID(), source: s}
		}
		return targets
	}

	targets := make([]target, 0, len(ids))
	for _, id := range ids {
		s := e.registry.Get(id)
		switch {
		case s == nil:
			targets = append(targets, target{id: id, err: &domain.UnknownSourceError{ID: id}})
		case !s.Capabilities().Has(capability):
			targets = append(targets, target{id: id, err: domain.ErrNotSupported})
		default:
			targets = append(targets, target{id: id, source: s})
		}
	}
	return targets
}

// Search fans the query out to every matching source concurrently, bounded
// by the rate limiter's global semaphore, and merges the results. It returns
// an error only for structural misuse; source failures are reported in the
// result's outcomes.
func (e *Engine) Search(ctx context.Context, query domain.SearchQuery, opts SearchOptions) (*SearchResult, error) {
	if query.MaxResults <= 0 {
		return nil, domain.NewValidationError("max_results", "must be positive")
	}

	targets := e.resolveTargets(opts.Sources, sources.CapSearch)
	if len(targets) == 0 && len(opts.Sources) == 0 {
		return nil, domain.NewValidationError("sources", "no registered source supports search")
	}

	type slot struct {
		outcome Outcome
		resp    *domain.SearchResponse
	}
	slots := make([]slot, len(targets))

	var wg sync.WaitGroup
	for i, tgt := range targets {
		if tgt.err != nil {
			slots[i].outcome = Outcome{Source: tgt.id, Err: tgt.err}
			e.logger.Warn().Str("source", tgt.id).Err(tgt.err).Msg("source skipped")
			continue
		}

		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			resp, outcome := e.searchOne(ctx, src, query)
			slots[i] = slot{outcome: outcome, resp: resp}
		}(i, tgt.source)
	}
	wg.Wait()

	result := &SearchResult{Outcomes: make([]Outcome, len(slots))}
	ordered := make([]*domain.SearchResponse, 0, len(slots))
	for i, s := range slots {
		result.Outcomes[i] = s.outcome
		if s.outcome.Err == nil && s.resp != nil {
			ordered = append(ordered, s.resp)
		}
	}

	result.Papers = Merge(ordered, query.SortBy)
	if opts.Dedup {
		var removed int
		result.Papers, removed = dedup.Deduplicate(result.Papers, e.cfg.AuthorThreshold)
		result.Duplicates = removed
		if removed > 0 && e.metrics != nil {
			e.metrics.RecordPaperDuplicates(removed)
		}
	}

	return result, nil
}

// searchOne runs one source's leg of the fan-out: cache check, rate-limiter
// admission, adapter call, cache fill.
func (e *Engine) searchOne(ctx context.Context, src sources.Source, query domain.SearchQuery) (*domain.SearchResponse, Outcome) {
	id := src.ID()
	logger := observability.WithSearchContext(e.logger, query.Query, id)
	start := time.Now()

	fingerprint := cache.Fingerprint(id, query)
	if cached := e.cache.Get(fingerprint); cached != nil {
		if e.metrics != nil {
			e.metrics.RecordCacheHit(string(cache.KindSearch))
		}
		logger.Debug().Int("papers", len(cached.Papers)).Msg("search served from cache")
		return cached, Outcome{
			Source:    id,
			Papers:    len(cached.Papers),
			FromCache: true,
			Duration:  time.Since(start),
		}
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(string(cache.KindSearch))
		e.metrics.RecordSearchStarted(id)
	}

	release, err := e.acquire(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("rate limiter admission failed")
		if e.metrics != nil {
			e.metrics.RecordSearchFailed(id, time.Since(start).Seconds())
		}
		return nil, Outcome{Source: id, Duration: time.Since(start), Err: err}
	}
	defer release()

	resp, err := src.Search(ctx, query)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("source search failed")
		if e.metrics != nil {
			e.metrics.RecordSearchFailed(id, elapsed.Seconds())
			e.metrics.RecordSourceRequestFailed(id, "search", errorType(err))
		}
		return nil, Outcome{Source: id, Duration: elapsed, Err: err}
	}

	e.cache.Put(fingerprint, resp, e.cfg.SearchTTL, cache.KindSearch)
	if e.metrics != nil {
		e.metrics.RecordSearchCompleted(id, len(resp.Papers), elapsed.Seconds())
		e.metrics.RecordPapersDiscovered(id, len(resp.Papers))
		e.metrics.RecordSourceRequest(id, "search", elapsed.Seconds())
	}
	logger.Debug().Int("papers", len(resp.Papers)).Dur("elapsed", elapsed).Msg("search completed")

	return resp, Outcome{Source: id, Papers: len(resp.Papers), Duration: elapsed}
}

// LookupDOI resolves a paper by DOI, trying DOI-capable sources in
// registration order and returning the first success. It returns
// domain.ErrNotFound when every capable source misses.
func (e *Engine) LookupDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "must not be empty")
	}

	capable := e.registry.WithCapability(sources.CapDOILookup)
	if len(capable) == 0 {
		return nil, domain.ErrNotSupported
	}

	var lastErr error
	for _, src := range capable {
		lookup, ok := src.(sources.DOILookupSource)
		if !ok {
			// Capability flag without the interface is an adapter defect.
			e.logger.Error().Str("source", src.ID()).Msg("source declares doi_lookup but lacks the interface")
			continue
		}

		paper, err := e.lookupOne(ctx, lookup, doi)
		if err == nil {
			return paper, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, domain.ErrNotFound) {
			lastErr = err
			e.logger.Warn().Str("source", src.ID()).Str("doi", doi).Err(err).Msg("doi lookup failed")
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.ErrNotFound
}

func (e *Engine) lookupOne(ctx context.Context, src sources.DOILookupSource, doi string) (*domain.Paper, error) {
	id := src.ID()
	start := time.Now()

	release, err := e.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	paper, err := src.GetByDOI(ctx, doi)
	if e.metrics != nil {
		if err != nil {
			e.metrics.RecordSourceRequestFailed(id, "doi_lookup", errorType(err))
		} else {
			e.metrics.RecordSourceRequest(id, "doi_lookup", time.Since(start).Seconds())
		}
	}
	return paper, err
}

// Citations returns papers citing the requested paper from one named source.
// The lookup is cached under the citation TTL.
func (e *Engine) Citations(ctx context.Context, sourceID string, req domain.CitationRequest) (*domain.SearchResponse, error) {
	if req.PaperID == "" {
		return nil, domain.NewValidationError("paper_id", "must not be empty")
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 10
	}

	src := e.registry.Get(sourceID)
	if src == nil {
		return nil, &domain.UnknownSourceError{ID: sourceID}
	}
	citing, ok := src.(sources.CitationSource)
	if !ok || !src.Capabilities().Has(sources.CapCitations) {
		return nil, domain.ErrNotSupported
	}

	fingerprint := cache.CitationFingerprint(sourceID, req.PaperID, req.MaxResults)
	if cached := e.cache.Get(fingerprint); cached != nil {
		if e.metrics != nil {
			e.metrics.RecordCacheHit(string(cache.KindCitation))
		}
		return cached, nil
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(string(cache.KindCitation))
	}

	release, err := e.acquire(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	resp, err := citing.Citations(ctx, req)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordSourceRequestFailed(sourceID, "citations", errorType(err))
		}
		return nil, err
	}

	e.cache.Put(fingerprint, resp, e.cfg.CitationTTL, cache.KindCitation)
	if e.metrics != nil {
		e.metrics.RecordSourceRequest(sourceID, "citations", time.Since(start).Seconds())
	}
	return resp, nil
}

// Download fetches a paper's PDF through one named source.
func (e *Engine) Download(ctx context.Context, sourceID string, req domain.DownloadRequest) (*domain.DownloadResult, error) {
	if req.PaperID == "" {
		return nil, domain.NewValidationError("paper_id", "must not be empty")
	}

	src := e.registry.Get(sourceID)
	if src == nil {
		return nil, &domain.UnknownSourceError{ID: sourceID}
	}
	downloader, ok := src.(sources.DownloadSource)
	if !ok || !src.Capabilities().Has(sources.CapDownload) {
		return nil, domain.ErrNotSupported
	}

	release, err := e.acquire(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := downloader.Download(ctx, req)
	if e.metrics != nil {
		if err != nil {
			e.metrics.RecordDownloadFailed(sourceID)
		} else {
			e.metrics.RecordDownload(sourceID, result.Bytes)
		}
	}
	return result, err
}

// Read returns the extracted text of a paper's PDF through one named
// source. Extraction reads from the local save path; when the file is
// missing the request decides whether the source downloads it first.
func (e *Engine) Read(ctx context.Context, sourceID string, req domain.ReadRequest) (*domain.ReadResult, error) {
	if req.PaperID == "" {
		return nil, domain.NewValidationError("paper_id", "must not be empty")
	}

	src := e.registry.Get(sourceID)
	if src == nil {
		return nil, &domain.UnknownSourceError{ID: sourceID}
	}
	reader, ok := src.(sources.ReadSource)
	if !ok || !src.Capabilities().Has(sources.CapRead) {
		return nil, domain.ErrNotSupported
	}

	release, err := e.acquire(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	result, err := reader.Read(ctx, req)
	if e.metrics != nil {
		if err != nil {
			e.metrics.RecordSourceRequestFailed(sourceID, "read", errorType(err))
		} else {
			e.metrics.RecordSourceRequest(sourceID, "read", time.Since(start).Seconds())
		}
	}
	return result, err
}

// acquire wraps rate-limiter admission with metrics for wait time, timeouts,
// and the in-flight gauge. The returned release also decrements the gauge.
func (e *Engine) acquire(ctx context.Context, sourceID string) (func(), error) {
	start := time.Now()
	release, err := e.limiter.Acquire(ctx, sourceID)
	waited := time.Since(start)

	if e.metrics == nil {
		return release, err
	}

	e.metrics.RecordRateLimitWait(sourceID, waited.Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrRateLimitTimeout) {
			e.metrics.RecordRateLimitTimeout(sourceID)
		}
		return nil, err
	}

	e.metrics.SourcesInFlight.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.metrics.SourcesInFlight.Dec()
			release()
		})
	}, nil
}

// errorType maps an error to a low-cardinality metrics label.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimitTimeout):
		return "rate_limit_timeout"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "source_error"
	}
}
