package domain

import "time"

// One match returned by a geocoding provider.
type GeocodeCandidate struct {
	Coordinate  Coordinate
	Confidence  float64
	DisplayName string
}

// Cached outcome of resolving one normalized address.
// Failed entries have a nil Coordinate and memoize an unresolvable address.
type GeocodeCacheEntry struct {
	NormalizedAddress string
	Coordinate        *Coordinate
	ResolvedAt        time.Time
	Failed            bool
}

// Outcome of resolving one input address: exactly one of Coordinate or Failure is set.
type Resolution struct {
	Coordinate *Coordinate
	Failure    *ResolutionFailure
}

func (r Resolution) OK() bool { return r.Coordinate != nil }
