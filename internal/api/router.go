package api

import (
	"log/slog"
	"net/http"
	"route-optimization-service/internal/api/handlers"
	"route-optimization-service/internal/platform/metrics"

	"github.com/julienschmidt/httprouter"
)

type Deps struct {
	Routes   *handlers.RouteHandler
	Geocode  *handlers.GeocodeHandler
	Health   *handlers.HealthHandler
	Vehicles *handlers.VehicleHandler
	Logger   *slog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	router := httprouter.New()

	vehicles := d.Vehicles
	if vehicles == nil {
		vehicles = &handlers.VehicleHandler{}
	}

	router.HandlerFunc(http.MethodGet, "/health", d.Health.Health)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	router.HandlerFunc(http.MethodPost, "/v1/routes/optimize", d.Routes.Optimize)
	router.HandlerFunc(http.MethodGet, "/v1/routes", d.Routes.List)
	router.HandlerFunc(http.MethodGet, "/v1/routes/:id", d.Routes.Get)
	router.HandlerFunc(http.MethodDelete, "/v1/routes/:id", d.Routes.Delete)
	router.HandlerFunc(http.MethodGet, "/v1/drivers/:driverID/routes", d.Routes.ListByDriver)
	router.HandlerFunc(http.MethodPost, "/v1/geocode", d.Geocode.Resolve)

	router.HandlerFunc(http.MethodPost, "/v1/vehicles", vehicles.Create)
	router.HandlerFunc(http.MethodGet, "/v1/vehicles", vehicles.List)
	router.HandlerFunc(http.MethodGet, "/v1/vehicles/:id", vehicles.Get)
	router.HandlerFunc(http.MethodPut, "/v1/vehicles/:id", vehicles.Update)
	router.HandlerFunc(http.MethodDelete, "/v1/vehicles/:id", vehicles.Delete)

	return requestIDMiddleware(d.Logger, loggingMiddleware(router))
}
