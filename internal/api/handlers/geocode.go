package handlers

import (
	"fmt"
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/services"
)

// GeocodeHandler resolves a batch of addresses through the shared geocoder.
type GeocodeHandler struct {
	Resolver     services.AddressResolver
	MaxAddresses int
}

func (h *GeocodeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.GeocodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Addresses) == 0 {
		writeError(w, r, http.StatusBadRequest, "addresses must not be empty")
		return
	}
	if h.MaxAddresses > 0 && len(req.Addresses) > h.MaxAddresses {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("at most %d addresses per request", h.MaxAddresses))
		return
	}

	resolved := h.Resolver.Resolve(r.Context(), req.Addresses)
	if err := r.Context().Err(); err != nil {
		writeServiceError(w, r, "geocode", err)
		return
	}

	res := dto.GeocodeResponse{Results: make([]dto.GeocodeResult, 0, len(req.Addresses))}
	for _, a := range req.Addresses {
		out := dto.GeocodeResult{Address: a}
		rr := resolved[a]
		switch {
		case rr.Coordinate != nil:
			lat, lon := rr.Coordinate.Lat, rr.Coordinate.Lon
			out.Lat, out.Lon = &lat, &lon
		case rr.Failure != nil:
			out.Error = rr.Failure.Reason
			out.Cached = rr.Failure.Cached
		default:
			out.Error = "not resolved"
		}
		res.Results = append(res.Results, out)
	}

	writeJSON(w, r, http.StatusOK, res)
}
