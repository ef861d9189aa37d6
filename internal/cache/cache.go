// Package cache provides a TTL- and size-bounded store for search and
// citation results, keyed by a deterministic fingerprint of the query.
//
// Entries live in memory in an LRU list whose total encoded size never
// exceeds the configured bound; eviction happens inside the same critical
// section as insertion, so the size invariant holds at every observable
// point. When a directory is configured, entries are mirrored to disk as
// JSON files and reloaded on startup. Any persistence failure degrades to
// miss behavior: a broken cache never fails a search.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Kind separates entry classes with independent TTLs and disk subdirectories.
type Kind string

const (
	// KindSearch marks cached search responses.
	KindSearch Kind = "searches"
	// KindCitation marks cached citation lookups.
	KindCitation Kind = "citations"
)

// Config holds cache settings.
type Config struct {
	// Enabled turns the cache on. A disabled cache answers every Get with
	// a miss and drops every Put.
	Enabled bool

	// Directory optionally mirrors entries to disk for reuse across
	// restarts. Empty keeps the cache memory-only.
	Directory string

	// MaxSizeMB bounds the total encoded size of resident entries.
	MaxSizeMB int
}

// Stats reports cache state and counters.
type Stats struct {
	Enabled   bool
	Entries   int
	SizeBytes int64
	MaxBytes  int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

type entry struct {
	key       string
	kind      Kind
	response  *domain.SearchResponse
	size      int64
	expiresAt time.Time
}

// Cache is a synchronized LRU store for source responses. The zero value is
// not usable; construct with New. Returned responses are shared and must be
// treated as read-only, matching the immutability of the domain model.
type Cache struct {
	mu         sync.Mutex
	enabled    bool
	maxBytes   int64
	totalBytes int64
	byKey      map[string]*list.Element
	lru        *list.List // front = most recently used
	disk       *diskStore
	logger     zerolog.Logger

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64

	// now is swappable for expiry tests.
	now func() time.Time
}

// New creates a cache. When cfg.Directory is set, surviving entries from a
// previous run are loaded back in; load failures are logged and otherwise
// ignored.
func New(cfg Config, logger zerolog.Logger) *Cache {
	maxBytes := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 500 * 1024 * 1024
	}

	c := &Cache{
		enabled:  cfg.Enabled,
		maxBytes: maxBytes,
		byKey:    make(map[string]*list.Element),
		lru:      list.New(),
		logger:   logger.With().Str("component", "cache").Logger(),
		now:      time.Now,
	}

	if cfg.Enabled && cfg.Directory != "" {
		c.disk = newDiskStore(cfg.Directory, c.logger)
		c.loadFromDisk()
	}

	return c
}

// Fingerprint returns the deterministic cache key for one source's view of
// a search query. Every field that changes the remote request participates.
func Fingerprint(sourceID string, q domain.SearchQuery) string {
	input := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s",
		sourceID, q.Query, q.MaxResults, q.Year, q.Author, q.Category, q.SortBy)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// CitationFingerprint returns the cache key for a citation lookup.
func CitationFingerprint(sourceID, paperID string, maxResults int) string {
	input := fmt.Sprintf("citations|%s|%s|%d", sourceID, paperID, maxResults)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for the fingerprint, or nil on miss.
// Expired entries count as misses and are purged on the way out.
func (c *Cache) Get(fingerprint string) *domain.SearchResponse {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byKey[fingerprint]
	if !ok {
		c.misses++
		return nil
	}

	ent := elem.Value.(*entry)
	if !c.now().Before(ent.expiresAt) {
		c.removeLocked(elem)
		c.expired++
		c.misses++
		return nil
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return ent.response
}

// Put stores a response under the fingerprint with the given TTL, evicting
// least-recently-used entries until it fits within the size bound. Entries
// larger than the whole bound are dropped. A non-positive TTL drops the
// entry as already expired.
func (c *Cache) Put(fingerprint string, resp *domain.SearchResponse, ttl time.Duration, kind Kind) {
	if !c.enabled || resp == nil || ttl <= 0 {
		return
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode response for caching")
		return
	}
	size := int64(len(encoded))
	if size > c.maxBytes {
		c.logger.Warn().
			Int64("size_bytes", size).
			Int64("max_bytes", c.maxBytes).
			Msg("response larger than cache bound, not cached")
		return
	}

	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.byKey[fingerprint]; ok {
		c.removeLocked(elem)
	}
	for c.totalBytes+size > c.maxBytes {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	ent := &entry{
		key:       fingerprint,
		kind:      kind,
		response:  resp,
		size:      size,
		expiresAt: expiresAt,
	}
	c.byKey[fingerprint] = c.lru.PushFront(ent)
	c.totalBytes += size

	if c.disk != nil {
		c.disk.write(ent, encoded)
	}
}

// removeLocked unlinks an entry. Callers hold c.mu.
func (c *Cache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.byKey, ent.key)
	c.totalBytes -= ent.size
	if c.disk != nil {
		c.disk.remove(ent.kind, ent.key)
	}
}

// Clear drops every entry, in memory and on disk.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		c.removeLocked(elem)
		elem = next
	}
}

// Stats returns a snapshot of cache state and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Enabled:   c.enabled,
		Entries:   c.lru.Len(),
		SizeBytes: c.totalBytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
}

// loadFromDisk restores persisted entries that have not yet expired.
func (c *Cache) loadFromDisk() {
	loaded := c.disk.load(c.now())

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ent := range loaded {
		if _, ok := c.byKey[ent.key]; ok {
			continue
		}
		if ent.size > c.maxBytes {
			continue
		}
		for c.totalBytes+ent.size > c.maxBytes {
			oldest := c.lru.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest)
			c.evictions++
		}
		c.byKey[ent.key] = c.lru.PushFront(ent)
		c.totalBytes += ent.size
	}

	if len(loaded) > 0 {
		c.logger.Info().Int("entries", c.lru.Len()).Msg("cache restored from disk")
	}
}
