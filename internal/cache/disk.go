package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/domain"
)

// persistedEntry is the on-disk form of a cache entry. The key doubles as
// the file name, so files remain self-describing when copied around.
type persistedEntry struct {
	Key       string          `json:"key"`
	Kind      Kind            `json:"kind"`
	ExpiresAt time.Time       `json:"expires_at"`
	Response  json.RawMessage `json:"response"`
}

// diskStore mirrors cache entries as JSON files under
// <dir>/searches and <dir>/citations. Every operation is best-effort:
// failures are logged with ErrCacheIO context and the in-memory cache
// carries on without the mirror.
type diskStore struct {
	dir    string
	logger zerolog.Logger
}

func newDiskStore(dir string, logger zerolog.Logger) *diskStore {
	s := &diskStore{dir: dir, logger: logger}
	for _, kind := range []Kind{KindSearch, KindCitation} {
		if err := os.MkdirAll(s.kindDir(kind), 0o755); err != nil {
			s.logger.Warn().
				Err(errors.Join(domain.ErrCacheIO, err)).
				Str("directory", dir).
				Msg("cache persistence unavailable")
			return &diskStore{dir: "", logger: logger}
		}
	}
	return s
}

func (s *diskStore) kindDir(kind Kind) string {
	return filepath.Join(s.dir, string(kind))
}

func (s *diskStore) path(kind Kind, key string) string {
	return filepath.Join(s.kindDir(kind), key+".json")
}

// write mirrors one entry. The already-encoded response is wrapped with
// expiry metadata so load can honor TTLs across restarts.
func (s *diskStore) write(ent *entry, encodedResponse []byte) {
	if s.dir == "" {
		return
	}

	wrapped := persistedEntry{
		Key:       ent.key,
		Kind:      ent.kind,
		ExpiresAt: ent.expiresAt,
		Response:  encodedResponse,
	}

	data, err := json.Marshal(wrapped)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", ent.key).Msg("failed to encode cache entry")
		return
	}

	path := s.path(ent.kind, ent.key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn().
			Err(errors.Join(domain.ErrCacheIO, err)).
			Str("key", ent.key).
			Msg("failed to persist cache entry")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		s.logger.Warn().
			Err(errors.Join(domain.ErrCacheIO, err)).
			Str("key", ent.key).
			Msg("failed to persist cache entry")
	}
}

// remove deletes the mirrored file for a key, if any.
func (s *diskStore) remove(kind Kind, key string) {
	if s.dir == "" {
		return
	}
	if err := os.Remove(s.path(kind, key)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().
			Err(errors.Join(domain.ErrCacheIO, err)).
			Str("key", key).
			Msg("failed to remove persisted cache entry")
	}
}

// load reads surviving entries from both subdirectories. Expired and
// unreadable files are deleted; anything else unexpected is skipped with a
// warning. Entries come back ordered by file modification time, oldest
// first, so re-inserting them preserves approximate recency.
func (s *diskStore) load(now time.Time) []*entry {
	if s.dir == "" {
		return nil
	}

	type loadedFile struct {
		ent     *entry
		modTime time.Time
	}
	var files []loadedFile

	for _, kind := range []Kind{KindSearch, KindCitation} {
		dirEntries, err := os.ReadDir(s.kindDir(kind))
		if err != nil {
			s.logger.Warn().
				Err(errors.Join(domain.ErrCacheIO, err)).
				Str("directory", s.kindDir(kind)).
				Msg("failed to read cache directory")
			continue
		}

		for _, de := range dirEntries {
			if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
				continue
			}
			path := filepath.Join(s.kindDir(kind), de.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn().
					Err(errors.Join(domain.ErrCacheIO, err)).
					Str("path", path).
					Msg("failed to read cache entry")
				continue
			}

			var wrapped persistedEntry
			if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.Response) == 0 {
				_ = os.Remove(path)
				continue
			}
			if !now.Before(wrapped.ExpiresAt) {
				_ = os.Remove(path)
				continue
			}

			var resp domain.SearchResponse
			if err := json.Unmarshal(wrapped.Response, &resp); err != nil {
				_ = os.Remove(path)
				continue
			}

			info, err := de.Info()
			modTime := now
			if err == nil {
				modTime = info.ModTime()
			}

			files = append(files, loadedFile{
				ent: &entry{
					key:       wrapped.Key,
					kind:      kind,
					response:  &resp,
					size:      int64(len(wrapped.Response)),
					expiresAt: wrapped.ExpiresAt,
				},
				modTime: modTime,
			})
		}
	}

	// Oldest first, so the freshest files end up at the front of the LRU.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	entries := make([]*entry, len(files))
	for i, f := range files {
		entries[i] = f.ent
	}
	return entries
}
