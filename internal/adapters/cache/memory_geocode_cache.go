package cache

import (
	"context"
	"hash/fnv"
	"route-optimization-service/internal/domain"
	"sync"
	"time"
)

const memoryShards = 32

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]domain.GeocodeCacheEntry
}

// MemoryGeocodeCache is the in-process geocode cache tier.
// Keys are spread over shards so writes to different keys rarely contend;
// writes to the same key always serialize on its shard lock.
type MemoryGeocodeCache struct {
	ttl    TTLPolicy
	now    func() time.Time
	shards [memoryShards]*memoryShard
}

func NewMemoryGeocodeCache(ttl TTLPolicy) *MemoryGeocodeCache {
	c := &MemoryGeocodeCache{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &memoryShard{entries: make(map[string]domain.GeocodeCacheEntry)}
	}
	return c
}

// WithClock replaces the time source. Intended for tests.
func (c *MemoryGeocodeCache) WithClock(now func() time.Time) *MemoryGeocodeCache {
	c.now = now
	return c
}

func (c *MemoryGeocodeCache) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%memoryShards]
}

func (c *MemoryGeocodeCache) Get(_ context.Context, key string) (*domain.GeocodeCacheEntry, error) {
	s := c.shard(key)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || c.ttl.Expired(e, c.now()) {
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryGeocodeCache) Put(_ context.Context, key string, coord *domain.Coordinate) error {
	c.Store(newEntry(key, coord, c.now()))
	return nil
}

// Store writes a complete entry, keeping its ResolvedAt. Used to backfill from shared tiers.
func (c *MemoryGeocodeCache) Store(e domain.GeocodeCacheEntry) {
	s := c.shard(e.NormalizedAddress)
	s.mu.Lock()
	s.entries[e.NormalizedAddress] = e
	s.mu.Unlock()
}

func (c *MemoryGeocodeCache) PurgeExpired(_ context.Context) (int, error) {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if c.ttl.Expired(e, now) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

func (c *MemoryGeocodeCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
