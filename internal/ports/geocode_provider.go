package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// Contract for converting a single address into candidate coordinates.
type GeocodeProvider interface {
	// Return zero or more candidates. An empty slice with a nil error means no match.
	Geocode(ctx context.Context, address string) ([]domain.GeocodeCandidate, error)
}
