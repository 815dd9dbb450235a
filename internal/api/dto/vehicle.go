package dto

import "time"

type CreateVehicleRequest struct {
	Name         string `json:"name"`
	Type         string `json:"vehicle_type"`
	Capacity     int    `json:"capacity"`
	StartAddress string `json:"start_address"`
	Available    *bool  `json:"is_available"`
}

// UpdateVehicleRequest changes only the fields that are present.
type UpdateVehicleRequest struct {
	Name         *string `json:"name"`
	Type         *string `json:"vehicle_type"`
	Capacity     *int    `json:"capacity"`
	StartAddress *string `json:"start_address"`
	Available    *bool   `json:"is_available"`
}

type VehicleResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"vehicle_type"`
	Capacity     int        `json:"capacity"`
	StartAddress string     `json:"start_address"`
	Available    bool       `json:"is_available"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type ListVehiclesResponse struct {
	Vehicles []VehicleResponse `json:"vehicles"`
}
