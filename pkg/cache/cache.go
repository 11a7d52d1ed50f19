package cache

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mcp-tool-server/pkg/logging"
)

// DefaultTTL is how long a cached result stays valid without invalidation
const DefaultTTL = 30 * time.Second

// entry is one cached tool result with its filesystem hint
type entry struct {
	value    interface{}
	path     string // canonical path the result depends on, "" if none
	storedAt time.Time
}

// ResultCache provides in-memory caching for tool invocation results.
// Entries expire after a TTL and can be invalidated eagerly when a
// watched path changes.
type ResultCache struct {
	entries map[string]*entry
	mutex   sync.RWMutex
	ttl     time.Duration
	stats   CacheStats

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	logger        *logging.StructuredLogger
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Invalidations int64     `json:"invalidations"`
	LastCleanup   time.Time `json:"lastCleanup"`
}

// NewResultCache creates a result cache. ttl <= 0 uses the default.
func NewResultCache(ttl time.Duration, logger *logging.StructuredLogger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.NewLoggingManager().GetLogger("cache")
	}

	rc := &ResultCache{
		entries:     make(map[string]*entry),
		ttl:         ttl,
		stats:       CacheStats{LastCleanup: time.Now()},
		stopCleanup: make(chan struct{}),
		logger:      logger,
	}

	rc.cleanupTicker = time.NewTicker(ttl)
	go rc.periodicCleanup()

	return rc
}

// periodicCleanup evicts expired entries in the background
func (rc *ResultCache) periodicCleanup() {
	for {
		select {
		case <-rc.cleanupTicker.C:
			rc.evictExpired()
		case <-rc.stopCleanup:
			rc.cleanupTicker.Stop()
			return
		}
	}
}

// evictExpired removes all entries past their TTL
func (rc *ResultCache) evictExpired() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range rc.entries {
		if now.Sub(e.storedAt) > rc.ttl {
			delete(rc.entries, key)
			removed++
		}
	}

	if removed > 0 {
		rc.stats.Invalidations += int64(removed)
		rc.logger.WithContext("entries_removed", removed).
			Debug("Cache cleanup removed expired entries")
	}
	rc.stats.LastCleanup = now
}

// Get retrieves a cached result by key. Returns false on miss or expiry.
func (rc *ResultCache) Get(key string) (interface{}, bool) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	e, exists := rc.entries[key]
	if !exists {
		rc.stats.Misses++
		return nil, false
	}
	if time.Since(e.storedAt) > rc.ttl {
		delete(rc.entries, key)
		rc.stats.Misses++
		rc.stats.Invalidations++
		return nil, false
	}

	rc.stats.Hits++
	return e.value, true
}

// Set stores a result under key. path records the filesystem location
// the result was derived from so watcher events can invalidate it.
func (rc *ResultCache) Set(key, path string, value interface{}) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = filepath.Clean(abs)
		}
	}

	rc.entries[key] = &entry{
		value:    value,
		path:     path,
		storedAt: time.Now(),
	}
}

// InvalidateUnder removes every entry whose path hint overlaps the given
// path: entries at the path itself, below it, or on any ancestor
// directory of it. Returns the number of entries removed.
func (rc *ResultCache) InvalidateUnder(path string) int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if abs, err := filepath.Abs(path); err == nil {
		path = filepath.Clean(abs)
	}

	var keysToDelete []string
	for key, e := range rc.entries {
		if e.path == "" {
			continue
		}
		if pathsOverlap(e.path, path) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		delete(rc.entries, key)
	}

	rc.stats.Invalidations += int64(len(keysToDelete))
	return len(keysToDelete)
}

// pathsOverlap reports whether a is b, contains b, or is contained by b
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}

// Invalidate removes a single entry by key
func (rc *ResultCache) Invalidate(key string) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if _, exists := rc.entries[key]; exists {
		delete(rc.entries, key)
		rc.stats.Invalidations++
	}
}

// Clear removes all entries
func (rc *ResultCache) Clear() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	rc.stats.Invalidations += int64(len(rc.entries))
	rc.entries = make(map[string]*entry)
	rc.stats.LastCleanup = time.Now()
}

// Close stops the cleanup goroutine and releases resources
func (rc *ResultCache) Close() {
	close(rc.stopCleanup)
}

// Size returns the number of cached entries
func (rc *ResultCache) Size() int {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	return len(rc.entries)
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats() CacheStats {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	return rc.stats
}

// GetPerformanceMetrics returns detailed metrics for monitoring
func (rc *ResultCache) GetPerformanceMetrics() map[string]interface{} {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	total := rc.stats.Hits + rc.stats.Misses
	hitRatio := 0.0
	if total > 0 {
		hitRatio = float64(rc.stats.Hits) / float64(total) * 100.0
	}

	return map[string]interface{}{
		"total_entries":   len(rc.entries),
		"ttl_seconds":     rc.ttl.Seconds(),
		"cache_hits":      rc.stats.Hits,
		"cache_misses":    rc.stats.Misses,
		"cache_hit_ratio": hitRatio,
		"invalidations":   rc.stats.Invalidations,
		"last_cleanup":    rc.stats.LastCleanup,
	}
}
