package cache

import (
	"route-optimization-service/internal/domain"
	"time"
)

// TTLPolicy holds entry lifetimes for resolved and failed lookups.
type TTLPolicy struct {
	Success time.Duration
	Failure time.Duration
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{Success: 24 * time.Hour, Failure: time.Hour}
}

func (p TTLPolicy) For(failed bool) time.Duration {
	if failed {
		return p.Failure
	}
	return p.Success
}

// Expired reports whether e is past its lifetime at now.
func (p TTLPolicy) Expired(e domain.GeocodeCacheEntry, now time.Time) bool {
	return !now.Before(e.ResolvedAt.Add(p.For(e.Failed)))
}

func newEntry(key string, coord *domain.Coordinate, now time.Time) domain.GeocodeCacheEntry {
	e := domain.GeocodeCacheEntry{NormalizedAddress: key, ResolvedAt: now, Failed: coord == nil}
	if coord != nil {
		c := *coord
		e.Coordinate = &c
	}
	return e
}
