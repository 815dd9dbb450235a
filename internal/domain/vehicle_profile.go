package domain

import (
	"strings"
	"time"
)

// VehicleProfile is a registered vehicle a route request can reference by id
// instead of repeating its capacity and depot inline.
type VehicleProfile struct {
	ID           int64
	Name         string
	Type         string
	Capacity     int
	StartAddress string
	Available    bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Validate checks the fields a caller must supply.
func (v VehicleProfile) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if v.Capacity < 0 {
		return NewValidationError("capacity", "must not be negative")
	}
	return nil
}
