package flow

import "time"

// SnapshotCache caches validated rule snapshots per survey so the server does
// not re-load and re-validate the rule set on every evaluation request. This
// is an abstraction point for swapping between in-memory, Redis, or other
// caching implementations.
type SnapshotCache interface {
	// Get retrieves a survey's cached snapshot, nil on miss or expiry
	Get(surveyID string) *Snapshot

	// Set stores a snapshot
	Set(surveyID string, snap *Snapshot)

	// Invalidate drops a survey's snapshot, forcing revalidation on next Get
	Invalidate(surveyID string)
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached snapshots.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for snapshot caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // No TTL - only invalidate on rule mutations
	}
}
