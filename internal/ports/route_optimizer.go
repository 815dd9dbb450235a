package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// RouteOptimizer orders stops for a single vehicle.
// Every stop passed in must carry a coordinate.
type RouteOptimizer interface {
	Optimize(ctx context.Context, vehicle domain.Vehicle, stops []domain.Stop) (domain.RouteResult, error)
}
