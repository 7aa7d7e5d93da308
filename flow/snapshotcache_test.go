package flow

import (
	"testing"
	"time"
)

func TestSnapshotCacheSetGet(t *testing.T) {
	cache := NewInMemorySnapshotCache(DefaultCacheConfig())

	if cache.Get("sv-1") != nil {
		t.Error("empty cache should miss")
	}

	snap := &Snapshot{SurveyID: "sv-1"}
	cache.Set("sv-1", snap)

	if got := cache.Get("sv-1"); got != snap {
		t.Error("Get should return the stored snapshot")
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	cache := NewInMemorySnapshotCache(DefaultCacheConfig())
	cache.Set("sv-1", &Snapshot{SurveyID: "sv-1"})
	cache.Set("sv-2", &Snapshot{SurveyID: "sv-2"})

	cache.Invalidate("sv-1")

	if cache.Get("sv-1") != nil {
		t.Error("invalidated entry should miss")
	}
	if cache.Get("sv-2") == nil {
		t.Error("other entries should be untouched")
	}
}

func TestSnapshotCacheTTLExpiry(t *testing.T) {
	cache := NewInMemorySnapshotCache(CacheConfig{TTL: time.Millisecond})
	cache.Set("sv-1", &Snapshot{SurveyID: "sv-1"})

	time.Sleep(5 * time.Millisecond)

	if cache.Get("sv-1") != nil {
		t.Error("an expired entry should miss")
	}
}

func TestSnapshotCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewInMemorySnapshotCache(CacheConfig{TTL: 0})
	cache.Set("sv-1", &Snapshot{SurveyID: "sv-1"})

	time.Sleep(2 * time.Millisecond)

	if cache.Get("sv-1") == nil {
		t.Error("a zero TTL means manual invalidation only")
	}
}
