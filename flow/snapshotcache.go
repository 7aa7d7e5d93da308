package flow

import (
	"sync"
	"time"
)

// InMemorySnapshotCache is a simple in-memory implementation of SnapshotCache.
// Thread-safe for concurrent access.
type InMemorySnapshotCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

type cacheEntry struct {
	snap     *Snapshot
	cachedAt time.Time
}

// NewInMemorySnapshotCache creates a new in-memory snapshot cache.
func NewInMemorySnapshotCache(config CacheConfig) *InMemorySnapshotCache {
	return &InMemorySnapshotCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

// Get retrieves a survey's cached snapshot.
// Returns nil if there is no entry or the entry has expired.
func (c *InMemorySnapshotCache) Get(surveyID string) *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[surveyID]
	if !ok {
		return nil
	}

	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil
	}

	return entry.snap
}

// Set stores a snapshot for a survey.
func (c *InMemorySnapshotCache) Set(surveyID string, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[surveyID] = cacheEntry{snap: snap, cachedAt: time.Now()}
}

// Invalidate drops a survey's snapshot.
func (c *InMemorySnapshotCache) Invalidate(surveyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, surveyID)
}
