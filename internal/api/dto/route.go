package dto

import "time"

// LocationRequest is an anchor or stop position: an address, or lat+lon.
type LocationRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type OrderRequest struct {
	ID             string   `json:"id"`
	Address        string   `json:"address"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	Priority       int      `json:"priority"`
	ServiceMinutes float64  `json:"service_minutes"`
	Demand         int      `json:"demand"`
}

type VehicleRequest struct {
	ID       int `json:"id"`
	Capacity int `json:"capacity"`
}

type OptimizeRouteRequest struct {
	DriverID   *int64           `json:"driver_id"`
	Name       string           `json:"name"`
	Start      LocationRequest  `json:"start"`
	End        *LocationRequest `json:"end"`
	Orders     []OrderRequest   `json:"orders"`
	AllowEmpty bool             `json:"allow_empty"`
	Optimizer  string           `json:"optimizer"`
	Vehicle    *VehicleRequest  `json:"vehicle"`
	DepartAt   *time.Time       `json:"depart_at"`
}

type LegResponse struct {
	From              *string    `json:"from"`
	To                string     `json:"to"`
	DistanceKm        float64    `json:"distance_km"`
	TravelTimeMinutes float64    `json:"travel_time_minutes"`
	ServiceMinutes    float64    `json:"service_minutes"`
	ArriveAt          *time.Time `json:"arrive_at,omitempty"`
}

type RouteResponse struct {
	ID                string            `json:"id,omitempty"`
	DriverID          *int64            `json:"driver_id,omitempty"`
	Name              string            `json:"name,omitempty"`
	OptimizerUsed     string            `json:"optimizer_used"`
	TotalDistanceKm   float64           `json:"total_distance_km"`
	TotalTimeMinutes  float64           `json:"total_time_minutes"`
	Legs              []LegResponse     `json:"legs"`
	UnresolvedStopIDs []string          `json:"unresolved_stop_ids"`
	Failures          map[string]string `json:"failures,omitempty"`
	FallbackReason    string            `json:"fallback_reason,omitempty"`
	CreatedAt         *time.Time        `json:"created_at,omitempty"`
}

type RouteSummaryResponse struct {
	ID               string    `json:"id"`
	DriverID         *int64    `json:"driver_id"`
	Name             string    `json:"name"`
	StartLabel       string    `json:"start"`
	EndLabel         string    `json:"end"`
	TotalStops       int       `json:"total_stops"`
	TotalDistanceKm  float64   `json:"total_distance_km"`
	TotalTimeMinutes float64   `json:"total_time_minutes"`
	OptimizerUsed    string    `json:"optimizer_used"`
	CreatedAt        time.Time `json:"created_at"`
}

type ListRoutesResponse struct {
	Routes []RouteSummaryResponse `json:"routes"`
}
