package handlers

import (
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// VehicleHandler manages the vehicle registry. Repo may be nil when no
// database is configured.
type VehicleHandler struct {
	Repo ports.VehicleRepository
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "vehicle storage not configured")
		return
	}

	var req dto.CreateVehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := &domain.VehicleProfile{
		Name:         strings.TrimSpace(req.Name),
		Type:         strings.TrimSpace(req.Type),
		Capacity:     req.Capacity,
		StartAddress: strings.TrimSpace(req.StartAddress),
		Available:    req.Available == nil || *req.Available,
	}
	if err := v.Validate(); err != nil {
		writeServiceError(w, r, "create vehicle", err)
		return
	}

	if err := h.Repo.Create(r.Context(), v); err != nil {
		writeServiceError(w, r, "create vehicle", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toVehicleResponse(*v))
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "vehicle storage not configured")
		return
	}

	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	var available *bool
	if raw := r.URL.Query().Get("is_available"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "is_available must be true or false")
			return
		}
		available = &b
	}

	vs, err := h.Repo.List(r.Context(), available, limit)
	if err != nil {
		writeServiceError(w, r, "list vehicles", err)
		return
	}

	out := dto.ListVehiclesResponse{Vehicles: make([]dto.VehicleResponse, 0, len(vs))}
	for _, v := range vs {
		out.Vehicles = append(out.Vehicles, toVehicleResponse(v))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vehicleID(w, r)
	if !ok {
		return
	}

	v, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get vehicle", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toVehicleResponse(*v))
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vehicleID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateVehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "update vehicle", err)
		return
	}

	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		v.Type = strings.TrimSpace(*req.Type)
	}
	if req.Capacity != nil {
		v.Capacity = *req.Capacity
	}
	if req.StartAddress != nil {
		v.StartAddress = strings.TrimSpace(*req.StartAddress)
	}
	if req.Available != nil {
		v.Available = *req.Available
	}
	if err := v.Validate(); err != nil {
		writeServiceError(w, r, "update vehicle", err)
		return
	}

	if err := h.Repo.Update(r.Context(), v); err != nil {
		writeServiceError(w, r, "update vehicle", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toVehicleResponse(*v))
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.vehicleID(w, r)
	if !ok {
		return
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// vehicleID parses the :id path parameter, writing the error response itself.
func (h *VehicleHandler) vehicleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if h.Repo == nil {
		writeError(w, r, http.StatusNotImplemented, "vehicle storage not configured")
		return 0, false
	}

	raw := httprouter.ParamsFromContext(r.Context()).ByName("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "vehicle id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toVehicleResponse(v domain.VehicleProfile) dto.VehicleResponse {
	return dto.VehicleResponse{
		ID:           v.ID,
		Name:         v.Name,
		Type:         v.Type,
		Capacity:     v.Capacity,
		StartAddress: v.StartAddress,
		Available:    v.Available,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}
