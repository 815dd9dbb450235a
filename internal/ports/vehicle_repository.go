package ports

import (
	"context"
	"route-optimization-service/internal/domain"
)

// Port: the vehicle registry. Lookups of unknown ids return domain.ErrVehicleNotFound.
type VehicleRepository interface {
	// Persist v, assigning ID and CreatedAt.
	Create(ctx context.Context, v *domain.VehicleProfile) error
	Get(ctx context.Context, id int64) (*domain.VehicleProfile, error)
	// List vehicles by id; available filters on availability when non-nil.
	List(ctx context.Context, available *bool, limit int) ([]domain.VehicleProfile, error)
	// Update overwrites the stored fields of v.ID and sets UpdatedAt.
	Update(ctx context.Context, v *domain.VehicleProfile) error
	Delete(ctx context.Context, id int64) error
}
