package cache

import (
	"context"
	"errors"
	"log/slog"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
)

// entryStorer is implemented by shared tiers that can take a backfilled entry
// without resetting its ResolvedAt.
type entryStorer interface {
	StoreEntry(ctx context.Context, e domain.GeocodeCacheEntry) error
}

// LayeredGeocodeCache reads the in-process tier first, then each shared tier in
// order (e.g. Redis, then Postgres). A hit in a slower tier is copied into every
// faster tier with its original timestamp. Writes go to all tiers.
// Shared tier errors are logged and degrade to a miss so geocoding still proceeds.
type LayeredGeocodeCache struct {
	local  *MemoryGeocodeCache
	shared []ports.GeocodeCache
	logger *slog.Logger
}

// NewLayeredGeocodeCache builds the cache from fastest to slowest tier. Nil
// shared tiers are skipped.
func NewLayeredGeocodeCache(local *MemoryGeocodeCache, logger *slog.Logger, shared ...ports.GeocodeCache) *LayeredGeocodeCache {
	tiers := make([]ports.GeocodeCache, 0, len(shared))
	for _, s := range shared {
		if s != nil {
			tiers = append(tiers, s)
		}
	}
	return &LayeredGeocodeCache{
		local:  local,
		shared: tiers,
		logger: logger.With("component", "geocode_cache"),
	}
}

func (l *LayeredGeocodeCache) Get(ctx context.Context, key string) (*domain.GeocodeCacheEntry, error) {
	if e, _ := l.local.Get(ctx, key); e != nil {
		return e, nil
	}

	for i, tier := range l.shared {
		e, err := tier.Get(ctx, key)
		if err != nil {
			l.logger.WarnContext(ctx, "shared cache read failed", "key", key, "tier", i, "error", err)
			continue
		}
		if e == nil || l.local.ttl.Expired(*e, l.local.now()) {
			continue
		}

		l.backfill(ctx, *e, i)
		return e, nil
	}
	return nil, nil
}

// backfill copies e into the memory tier and the shared tiers faster than hit.
func (l *LayeredGeocodeCache) backfill(ctx context.Context, e domain.GeocodeCacheEntry, hit int) {
	l.local.Store(e)

	for i := 0; i < hit; i++ {
		s, ok := l.shared[i].(entryStorer)
		if !ok {
			continue
		}
		if err := s.StoreEntry(ctx, e); err != nil {
			l.logger.WarnContext(ctx, "shared cache backfill failed", "key", e.NormalizedAddress, "tier", i, "error", err)
		}
	}
}

func (l *LayeredGeocodeCache) Put(ctx context.Context, key string, coord *domain.Coordinate) error {
	_ = l.local.Put(ctx, key, coord)

	for i, tier := range l.shared {
		if err := tier.Put(ctx, key, coord); err != nil {
			l.logger.WarnContext(ctx, "shared cache write failed", "key", key, "tier", i, "error", err)
		}
	}
	return nil
}

// PurgeExpired purges every tier that supports it and returns the total removed.
// A failing tier does not stop the others.
func (l *LayeredGeocodeCache) PurgeExpired(ctx context.Context) (int, error) {
	n, _ := l.local.PurgeExpired(ctx)

	var errs []error
	for _, tier := range l.shared {
		ec, ok := tier.(ports.ExpiringCache)
		if !ok {
			continue
		}
		m, err := ec.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		n += m
	}
	return n, errors.Join(errs...)
}
