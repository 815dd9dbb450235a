package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "geocode:"

type redisEntry struct {
	Lat        *float64  `json:"lat,omitempty"`
	Lon        *float64  `json:"lon,omitempty"`
	Failed     bool      `json:"failed"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RedisGeocodeCache shares geocode results between service instances.
// Expiry is delegated to Redis key TTLs.
type RedisGeocodeCache struct {
	rc  *redis.Client
	ttl TTLPolicy
	now func() time.Time
}

func NewRedisGeocodeCache(rc *redis.Client, ttl TTLPolicy) *RedisGeocodeCache {
	return &RedisGeocodeCache{rc: rc, ttl: ttl, now: time.Now}
}

func (r *RedisGeocodeCache) Get(ctx context.Context, key string) (_ *domain.GeocodeCacheEntry, err error) {
	defer obs.Time(ctx, "geocode.cache.redis.Get")(&err)

	raw, err := r.rc.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geocode cache %q: %w", key, err)
	}

	var re redisEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, fmt.Errorf("get geocode cache %q: decode: %w", key, err)
	}

	e := domain.GeocodeCacheEntry{NormalizedAddress: key, ResolvedAt: re.ResolvedAt, Failed: re.Failed}
	if !re.Failed {
		if re.Lat == nil || re.Lon == nil {
			return nil, fmt.Errorf("get geocode cache %q: entry without coordinate", key)
		}
		e.Coordinate = &domain.Coordinate{Lat: *re.Lat, Lon: *re.Lon}
	}
	return &e, nil
}

func (r *RedisGeocodeCache) Put(ctx context.Context, key string, coord *domain.Coordinate) (err error) {
	defer obs.Time(ctx, "geocode.cache.redis.Put")(&err)

	return r.set(ctx, newEntry(key, coord, r.now().UTC()), r.ttl.For(coord == nil))
}

// StoreEntry writes e keeping its ResolvedAt; the key expires when e would.
// Entries already past their lifetime are not written.
func (r *RedisGeocodeCache) StoreEntry(ctx context.Context, e domain.GeocodeCacheEntry) (err error) {
	defer obs.Time(ctx, "geocode.cache.redis.StoreEntry")(&err)

	left := e.ResolvedAt.Add(r.ttl.For(e.Failed)).Sub(r.now())
	if left <= 0 {
		return nil
	}
	return r.set(ctx, e, left)
}

func (r *RedisGeocodeCache) set(ctx context.Context, e domain.GeocodeCacheEntry, expiry time.Duration) error {
	re := redisEntry{Failed: e.Failed, ResolvedAt: e.ResolvedAt.UTC()}
	if !e.Failed && e.Coordinate != nil {
		lat, lon := e.Coordinate.Lat, e.Coordinate.Lon
		re.Lat, re.Lon = &lat, &lon
	}

	b, err := json.Marshal(re)
	if err != nil {
		return fmt.Errorf("put geocode cache %q: encode: %w", e.NormalizedAddress, err)
	}
	if err := r.rc.Set(ctx, redisKeyPrefix+e.NormalizedAddress, b, expiry).Err(); err != nil {
		return fmt.Errorf("put geocode cache %q: %w", e.NormalizedAddress, err)
	}
	return nil
}
