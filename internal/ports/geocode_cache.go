package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// GeocodeCache maps normalized addresses to resolved coordinates.
// A nil coordinate on Put memoizes a failed resolution.
type GeocodeCache interface {
	// Return the live entry for key, or nil when absent or expired.
	Get(ctx context.Context, key string) (*domain.GeocodeCacheEntry, error)
	Put(ctx context.Context, key string, coord *domain.Coordinate) error
}

// Implemented by cache tiers that need periodic eviction of expired entries.
type ExpiringCache interface {
	PurgeExpired(ctx context.Context) (int, error)
}
