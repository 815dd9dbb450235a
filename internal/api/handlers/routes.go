package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"route-optimization-service/internal/services"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

type RoutePlanner interface {
	Run(ctx context.Context, req services.RouteRequest) (domain.RouteResult, error)
}

// RouteHandler exposes route optimization and stored-route retrieval.
// Repo may be nil, in which case routes are computed but not stored.
// Vehicles may be nil, in which case vehicle ids are passed through unchecked.
type RouteHandler struct {
	Planner  RoutePlanner
	Repo     ports.RouteRepository
	Vehicles ports.VehicleRepository
}

// Optimize runs the pipeline for one request and stores the result.
// A storage failure is logged; the computed route is still returned.
func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.applyVehicle(r.Context(), &req); err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	svcReq, err := toRouteRequest(req)
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	res, err := h.Planner.Run(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	rec := &domain.RouteRecord{
		DriverID:   req.DriverID,
		Name:       req.Name,
		StartLabel: locationLabel(req.Start),
		TotalStops: len(req.Orders),
		Result:     res,
	}
	if req.End != nil {
		rec.EndLabel = locationLabel(*req.End)
	}

	if h.Repo != nil {
		if err := h.Repo.Save(r.Context(), rec); err != nil {
			obs.FromContext(r.Context()).Error("save route failed", "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, toRouteResponse(rec))
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "route storage not configured")
		return
	}

	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	rec, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRouteResponse(rec))
}

func (h *RouteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "route storage not configured")
		return
	}

	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "route storage not configured")
		return
	}

	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	recs, err := h.Repo.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, "list routes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toListResponse(recs))
}

func (h *RouteHandler) ListByDriver(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "route storage not configured")
		return
	}

	raw := httprouter.ParamsFromContext(r.Context()).ByName("driverID")
	driverID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || driverID <= 0 {
		writeError(w, r, http.StatusBadRequest, "driver id must be a positive integer")
		return
	}

	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	recs, err := h.Repo.ListByDriver(r.Context(), driverID, limit)
	if err != nil {
		writeServiceError(w, r, "list driver routes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toListResponse(recs))
}

// applyVehicle fills the capacity and start of a request that references a
// registered vehicle. Inline values win over the registry.
func (h *RouteHandler) applyVehicle(ctx context.Context, req *dto.OptimizeRouteRequest) error {
	if h.Vehicles == nil || req.Vehicle == nil || req.Vehicle.ID <= 0 {
		return nil
	}

	v, err := h.Vehicles.Get(ctx, int64(req.Vehicle.ID))
	if errors.Is(err, domain.ErrVehicleNotFound) {
		return domain.NewValidationError("vehicle.id", "unknown vehicle")
	}
	if err != nil {
		return err
	}
	if !v.Available {
		return domain.NewValidationError("vehicle.id", "vehicle is not available")
	}

	if req.Vehicle.Capacity == 0 {
		req.Vehicle.Capacity = v.Capacity
	}
	start := req.Start
	if strings.TrimSpace(start.Address) == "" && start.Lat == nil && start.Lon == nil {
		req.Start.Address = v.StartAddress
	}
	return nil
}

func toLocation(field string, l dto.LocationRequest) (services.Location, error) {
	loc := services.Location{Address: strings.TrimSpace(l.Address)}
	c, err := optionalCoordinate(field, l.Lat, l.Lon)
	if err != nil {
		return services.Location{}, err
	}
	loc.Coordinate = c
	return loc, nil
}

func optionalCoordinate(field string, lat, lon *float64) (*domain.Coordinate, error) {
	switch {
	case lat == nil && lon == nil:
		return nil, nil
	case lat == nil || lon == nil:
		return nil, domain.NewValidationError(field, "lat and lon must be given together")
	}
	return &domain.Coordinate{Lat: *lat, Lon: *lon}, nil
}

func toRouteRequest(req dto.OptimizeRouteRequest) (services.RouteRequest, error) {
	start, err := toLocation("start", req.Start)
	if err != nil {
		return services.RouteRequest{}, err
	}

	out := services.RouteRequest{
		Start:           start,
		Stops:           make([]domain.Stop, 0, len(req.Orders)),
		AllowEmptyStops: req.AllowEmpty,
		Optimizer:       services.OptimizerHint(strings.ToLower(req.Optimizer)),
		DepartAt:        req.DepartAt,
	}

	if req.End != nil {
		end, err := toLocation("end", *req.End)
		if err != nil {
			return services.RouteRequest{}, err
		}
		out.End = &end
	}
	if req.Vehicle != nil {
		out.Vehicle = services.VehicleHint{ID: req.Vehicle.ID, Capacity: req.Vehicle.Capacity}
	}

	for i, o := range req.Orders {
		c, err := optionalCoordinate(fmt.Sprintf("orders[%d]", i), o.Lat, o.Lon)
		if err != nil {
			return services.RouteRequest{}, err
		}
		if o.ServiceMinutes < 0 {
			return services.RouteRequest{}, domain.NewValidationError(fmt.Sprintf("orders[%d].service_minutes", i), "must not be negative")
		}

		demand := o.Demand
		if demand == 0 {
			demand = 1
		}
		out.Stops = append(out.Stops, domain.Stop{
			ExternalID:  o.ID,
			Address:     strings.TrimSpace(o.Address),
			Coordinate:  c,
			Priority:    o.Priority,
			ServiceTime: time.Duration(o.ServiceMinutes * float64(time.Minute)),
			Demand:      demand,
		})
	}
	return out, nil
}

func locationLabel(l dto.LocationRequest) string {
	if a := strings.TrimSpace(l.Address); a != "" {
		return a
	}
	if l.Lat != nil && l.Lon != nil {
		return fmt.Sprintf("%.6f,%.6f", *l.Lat, *l.Lon)
	}
	return ""
}

func toRouteResponse(rec *domain.RouteRecord) dto.RouteResponse {
	res := rec.Result
	out := dto.RouteResponse{
		ID:                rec.ID,
		DriverID:          rec.DriverID,
		Name:              rec.Name,
		OptimizerUsed:     string(res.OptimizerUsed),
		TotalDistanceKm:   res.TotalDistanceKm,
		TotalTimeMinutes:  res.TotalTimeMinutes,
		Legs:              make([]dto.LegResponse, 0, len(res.OrderedLegs)),
		UnresolvedStopIDs: res.UnresolvedStopIDs,
		Failures:          res.Failures,
		FallbackReason:    res.FallbackReason,
	}
	if out.UnresolvedStopIDs == nil {
		out.UnresolvedStopIDs = []string{}
	}
	if !rec.CreatedAt.IsZero() {
		t := rec.CreatedAt
		out.CreatedAt = &t
	}

	for _, l := range res.OrderedLegs {
		out.Legs = append(out.Legs, dto.LegResponse{
			From:              l.FromStopID,
			To:                l.ToStopID,
			DistanceKm:        l.DistanceKm,
			TravelTimeMinutes: l.TravelTimeMinutes,
			ServiceMinutes:    l.ServiceMinutes,
			ArriveAt:          l.ArriveAt,
		})
	}
	return out
}

func toListResponse(recs []domain.RouteRecord) dto.ListRoutesResponse {
	out := dto.ListRoutesResponse{Routes: make([]dto.RouteSummaryResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Routes = append(out.Routes, dto.RouteSummaryResponse{
			ID:               rec.ID,
			DriverID:         rec.DriverID,
			Name:             rec.Name,
			StartLabel:       rec.StartLabel,
			EndLabel:         rec.EndLabel,
			TotalStops:       rec.TotalStops,
			TotalDistanceKm:  rec.Result.TotalDistanceKm,
			TotalTimeMinutes: rec.Result.TotalTimeMinutes,
			OptimizerUsed:    string(rec.Result.OptimizerUsed),
			CreatedAt:        rec.CreatedAt,
		})
	}
	return out
}
