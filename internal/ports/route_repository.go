package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// Port: a boundary for storing and retrieving computed routes.
type RouteRepository interface {
	// Persist the record, assigning ID and CreatedAt.
	Save(ctx context.Context, rec *domain.RouteRecord) error
	Get(ctx context.Context, id string) (*domain.RouteRecord, error)
	ListByDriver(ctx context.Context, driverID int64, limit int) ([]domain.RouteRecord, error)
	List(ctx context.Context, limit int) ([]domain.RouteRecord, error)
	// Delete returns domain.ErrRouteNotFound when id does not exist.
	Delete(ctx context.Context, id string) error
}
