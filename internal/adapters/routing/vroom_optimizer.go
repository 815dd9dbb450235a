package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/httpx"
	"route-optimization-service/internal/platform/obs"
	"strings"
	"time"
)

const (
	KindVROOM = "vroom"
	KindORS   = "ors"

	providerName = "vroom"
)

type Options struct {
	Kind    string
	BaseURL string
	APIKey  string
	Profile string
	Timeout time.Duration
}

// VROOMOptimizer implements RouteOptimizer against a VROOM-compatible solver
// (a VROOM server, or openrouteservice /optimization).
// Failures are reported as domain.ProviderError and are never retried here.
type VROOMOptimizer struct {
	client   *httpx.Client
	endpoint string
	profile  string
}

func NewVROOMOptimizer(opts Options) (*VROOMOptimizer, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("routing provider: base url is empty")
	}

	endpoint := base + "/"
	switch strings.ToLower(opts.Kind) {
	case "", KindVROOM:
	case KindORS:
		endpoint = base + "/optimization"
	default:
		return nil, fmt.Errorf("routing provider: unknown kind %q", opts.Kind)
	}

	profile := opts.Profile
	if profile == "" {
		profile = "driving-car"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &VROOMOptimizer{
		client:   httpx.NewClient(timeout, opts.APIKey, ""),
		endpoint: endpoint,
		profile:  profile,
	}, nil
}

type vroomVehicle struct {
	ID       int       `json:"id"`
	Profile  string    `json:"profile"`
	Start    []float64 `json:"start"`
	End      []float64 `json:"end,omitempty"`
	Capacity []int     `json:"capacity,omitempty"`
}

type vroomJob struct {
	ID          int       `json:"id"`
	Description string    `json:"description,omitempty"`
	Location    []float64 `json:"location"`
	Service     int       `json:"service"`
	Priority    int       `json:"priority"`
	Delivery    []int     `json:"delivery,omitempty"`
}

type vroomRequest struct {
	Vehicles []vroomVehicle `json:"vehicles"`
	Jobs     []vroomJob     `json:"jobs"`
	Options  struct {
		G bool `json:"g"`
	} `json:"options"`
}

type vroomStep struct {
	Type     string   `json:"type"`
	ID       *int     `json:"id"`
	Job      *int     `json:"job"`
	Duration float64  `json:"duration"`
	Distance *float64 `json:"distance"`
}

type vroomResponse struct {
	Code       int    `json:"code"`
	Error      string `json:"error"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
	Routes []struct {
		Vehicle int         `json:"vehicle"`
		Steps   []vroomStep `json:"steps"`
	} `json:"routes"`
}

// WirePriority maps an internal priority (lower = more urgent) onto the
// provider's 0..100 scale (higher = more urgent).
func WirePriority(p int) int {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return 100 - p
}

func buildRequest(vehicle domain.Vehicle, stops []domain.Stop, profile string) (vroomRequest, error) {
	vid := vehicle.ID
	if vid <= 0 {
		vid = 1
	}

	v := vroomVehicle{ID: vid, Profile: profile, Start: vehicle.Start.CoordsToList()}
	if vehicle.End != nil {
		v.End = vehicle.End.CoordsToList()
	}
	if vehicle.Capacity > 0 {
		v.Capacity = []int{vehicle.Capacity}
	}

	req := vroomRequest{Vehicles: []vroomVehicle{v}, Jobs: make([]vroomJob, 0, len(stops))}
	req.Options.G = true

	for i, s := range stops {
		if s.Coordinate == nil {
			return vroomRequest{}, fmt.Errorf("stop %q has no coordinate", s.ExternalID)
		}
		j := vroomJob{
			ID:          i + 1,
			Description: s.ExternalID,
			Location:    s.Coordinate.CoordsToList(),
			Service:     int(math.Round(s.ServiceTime.Seconds())),
			Priority:    WirePriority(s.Priority),
		}
		if vehicle.Capacity > 0 {
			d := s.Demand
			if d <= 0 {
				d = 1
			}
			j.Delivery = []int{d}
		}
		req.Jobs = append(req.Jobs, j)
	}
	return req, nil
}

func (o *VROOMOptimizer) Optimize(
	ctx context.Context,
	vehicle domain.Vehicle,
	stops []domain.Stop,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, "routing.vroom.Optimize")(&err)

	body, err := buildRequest(vehicle, stops, o.profile)
	if err != nil {
		return domain.RouteResult{}, domain.Rejected(providerName, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.RouteResult{}, domain.Rejected(providerName, fmt.Errorf("marshal request: %w", err))
	}

	req, err := o.client.NewRequest(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.RouteResult{}, domain.Unavailable(providerName, err)
	}

	var vr vroomResponse
	if err := o.client.DoJSON(req, &vr); err != nil {
		return domain.RouteResult{}, classify(err)
	}

	return parseResponse(vr, stops)
}

func classify(err error) error {
	var se *httpx.StatusError
	switch {
	case errors.As(err, &se):
		if httpx.IsTransient(err) {
			return domain.Unavailable(providerName, err)
		}
		return domain.Rejected(providerName, err)
	case httpx.IsTransient(err), errors.Is(err, context.Canceled):
		return domain.Unavailable(providerName, err)
	}
	// undecodable body
	return domain.Rejected(providerName, err)
}

func parseResponse(vr vroomResponse, stops []domain.Stop) (domain.RouteResult, error) {
	if vr.Code != 0 {
		return domain.RouteResult{}, domain.Rejected(providerName, fmt.Errorf("solver code %d: %s", vr.Code, vr.Error))
	}
	if len(vr.Unassigned) > 0 {
		ids := make([]string, 0, len(vr.Unassigned))
		for _, u := range vr.Unassigned {
			if u.ID >= 1 && u.ID <= len(stops) {
				ids = append(ids, stops[u.ID-1].ExternalID)
			}
		}
		return domain.RouteResult{}, domain.Rejected(providerName,
			fmt.Errorf("infeasible: %d unassigned jobs [%s]", len(vr.Unassigned), strings.Join(ids, ", ")))
	}
	if len(vr.Routes) != 1 {
		return domain.RouteResult{}, domain.Rejected(providerName, fmt.Errorf("expected 1 route, got %d", len(vr.Routes)))
	}

	res := domain.RouteResult{
		OrderedLegs:   make([]domain.RouteLeg, 0, len(stops)+1),
		OptimizerUsed: domain.OptimizerRemote,
	}

	var (
		prevID   *string
		prevDist float64
		prevDur  float64
	)
	for _, st := range vr.Routes[0].Steps {
		if st.Distance == nil {
			return domain.RouteResult{}, domain.Rejected(providerName, errors.New("step without distance"))
		}

		var leg domain.RouteLeg
		switch st.Type {
		case "start":
			prevDist, prevDur = *st.Distance, st.Duration
			continue
		case "job":
			id := st.ID
			if id == nil {
				id = st.Job
			}
			if id == nil || *id < 1 || *id > len(stops) {
				return domain.RouteResult{}, domain.Rejected(providerName, errors.New("step references unknown job"))
			}
			s := stops[*id-1]
			leg = domain.RouteLeg{ToStopID: s.ExternalID, ServiceMinutes: s.ServiceTime.Minutes()}
		case "end":
			leg = domain.RouteLeg{ToStopID: domain.EndLocationID}
		default:
			// breaks and other step kinds carry no leg
			continue
		}

		leg.FromStopID = prevID
		leg.DistanceKm = math.Max(0, *st.Distance-prevDist) / 1000
		leg.TravelTimeMinutes = math.Max(0, st.Duration-prevDur) / 60
		res.OrderedLegs = append(res.OrderedLegs, leg)
		res.TotalDistanceKm += leg.DistanceKm
		res.TotalTimeMinutes += leg.TravelTimeMinutes + leg.ServiceMinutes

		if leg.ToStopID != domain.EndLocationID {
			to := leg.ToStopID
			prevID = &to
		}
		prevDist, prevDur = *st.Distance, st.Duration
	}

	return res, nil
}
