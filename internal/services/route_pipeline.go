package services

import (
	"context"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/metrics"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"sort"
	"strings"
	"time"
)

const DefaultMaxStops = 100

type OptimizerHint string

const (
	OptimizerAuto  OptimizerHint = "auto"
	OptimizerLocal OptimizerHint = "local"
)

// Location is a route anchor given either as an address or a coordinate.
// The coordinate wins when both are set.
type Location struct {
	Address    string
	Coordinate *domain.Coordinate
}

func (l Location) empty() bool {
	return l.Coordinate == nil && strings.TrimSpace(l.Address) == ""
}

type VehicleHint struct {
	ID       int
	Capacity int
}

type RouteRequest struct {
	Start           Location
	End             *Location
	Stops           []domain.Stop
	AllowEmptyStops bool
	Optimizer       OptimizerHint
	Vehicle         VehicleHint
	DepartAt        *time.Time
}

// AddressResolver is the part of Geocoder the pipeline depends on.
type AddressResolver interface {
	Resolve(ctx context.Context, addresses []string) map[string]domain.Resolution
}

type PipelineState int

const (
	StateValidating PipelineState = iota
	StateGeocoding
	StateOptimizing
	StateAssembling
	StateDone
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateGeocoding:
		return "geocoding"
	case StateOptimizing:
		return "optimizing"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// RoutePipeline turns a route request into a RouteResult:
// validate, geocode missing coordinates, optimize (remote first when
// configured, local otherwise or on any remote failure), then assemble.
// One pipeline serves concurrent runs; it holds no per-run state.
type RoutePipeline struct {
	resolver AddressResolver
	remote   ports.RouteOptimizer
	local    *LocalOptimizer
	maxStops int
}

// NewRoutePipeline wires the pipeline. remote may be nil, in which case every
// run uses the local optimizer.
func NewRoutePipeline(
	resolver AddressResolver,
	remote ports.RouteOptimizer,
	local *LocalOptimizer,
	maxStops int,
) *RoutePipeline {
	if maxStops <= 0 {
		maxStops = DefaultMaxStops
	}
	if local == nil {
		local = NewLocalOptimizer(domain.DefaultAvgSpeedKmh)
	}
	return &RoutePipeline{resolver: resolver, remote: remote, local: local, maxStops: maxStops}
}

// run holds the state of one invocation.
type run struct {
	req        RouteRequest
	state      PipelineState
	start      domain.Coordinate
	end        *domain.Coordinate
	resolved   []domain.Stop
	unresolved map[string]string
}

// Run executes the pipeline. The only errors are a *domain.ValidationError,
// the context's error when ctx is cancelled, and a *domain.MetricError if an
// invalid coordinate slipped past validation.
func (p *RoutePipeline) Run(ctx context.Context, req RouteRequest) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, "pipeline.Run")(&err)
	began := time.Now()
	defer func() { metrics.PipelineDurationMs.Observe(float64(time.Since(began).Milliseconds())) }()

	r := &run{req: req, state: StateValidating}

	if err := p.validate(ctx, r); err != nil {
		if ctx.Err() != nil {
			return domain.RouteResult{}, ctx.Err()
		}
		p.transition(ctx, r, StateFailed)
		return domain.RouteResult{}, err
	}

	p.transition(ctx, r, StateGeocoding)
	p.geocode(ctx, r)
	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, err
	}

	p.transition(ctx, r, StateOptimizing)
	res, err := p.optimize(ctx, r)
	if err != nil {
		return domain.RouteResult{}, err
	}

	p.transition(ctx, r, StateAssembling)
	res = p.assemble(r, res)

	p.transition(ctx, r, StateDone)
	metrics.OptimizerRunsTotal.WithLabelValues(string(res.OptimizerUsed)).Inc()
	return res, nil
}

func (p *RoutePipeline) transition(ctx context.Context, r *run, to PipelineState) {
	obs.FromContext(ctx).DebugContext(ctx, "pipeline state", "from", r.state.String(), "to", to.String())
	r.state = to
}

func (p *RoutePipeline) validate(ctx context.Context, r *run) error {
	req := r.req

	if len(req.Stops) > p.maxStops {
		return domain.NewValidationError("stops", "at most %d stops per route, got %d", p.maxStops, len(req.Stops))
	}
	if len(req.Stops) == 0 && !req.AllowEmptyStops {
		return domain.NewValidationError("stops", "at least one stop is required")
	}
	switch req.Optimizer {
	case "", OptimizerAuto, OptimizerLocal:
	default:
		return domain.NewValidationError("optimizer", "unknown optimizer %q", req.Optimizer)
	}
	if req.Vehicle.Capacity < 0 {
		return domain.NewValidationError("vehicle.capacity", "must not be negative")
	}

	seen := make(map[string]struct{}, len(req.Stops))
	for i, s := range req.Stops {
		field := fmt.Sprintf("stops[%d]", i)
		id := strings.TrimSpace(s.ExternalID)

		switch {
		case id == "":
			return domain.NewValidationError(field+".external_id", "is required")
		case id == domain.EndLocationID:
			return domain.NewValidationError(field+".external_id", "%q is reserved", domain.EndLocationID)
		}
		if _, dup := seen[s.ExternalID]; dup {
			return domain.NewValidationError(field+".external_id", "duplicate external_id %q", s.ExternalID)
		}
		seen[s.ExternalID] = struct{}{}

		if s.Coordinate != nil {
			if err := s.Coordinate.Validate(); err != nil {
				return domain.NewValidationError(field+".coordinate", "%v", err)
			}
		} else if strings.TrimSpace(s.Address) == "" {
			return domain.NewValidationError(field, "address or coordinate is required")
		}
		if s.ServiceTime < 0 {
			return domain.NewValidationError(field+".service_time", "must not be negative")
		}
		if s.Demand < 0 {
			return domain.NewValidationError(field+".demand", "must not be negative")
		}
	}

	if req.Start.empty() {
		return domain.NewValidationError("start", "address or coordinate is required")
	}
	if req.End != nil && req.End.empty() {
		return domain.NewValidationError("end", "address or coordinate is required when end is given")
	}

	return p.resolveAnchors(ctx, r)
}

// resolveAnchors fixes the start and end coordinates. An anchor that cannot be
// placed leaves the route without an origin or destination, so it fails validation.
func (p *RoutePipeline) resolveAnchors(ctx context.Context, r *run) error {
	// Range errors are cheaper than a provider call, so check both anchors first.
	if err := checkAnchorCoordinate("start", r.req.Start); err != nil {
		return err
	}
	if r.req.End != nil {
		if err := checkAnchorCoordinate("end", *r.req.End); err != nil {
			return err
		}
	}

	var pending []string
	if r.req.Start.Coordinate == nil {
		pending = append(pending, r.req.Start.Address)
	}
	if r.req.End != nil && r.req.End.Coordinate == nil {
		pending = append(pending, r.req.End.Address)
	}

	var resolved map[string]domain.Resolution
	if len(pending) > 0 {
		resolved = p.resolver.Resolve(ctx, pending)
	}

	start, err := anchorCoordinate("start", r.req.Start, resolved)
	if err != nil {
		return err
	}
	r.start = start

	if r.req.End != nil {
		end, err := anchorCoordinate("end", *r.req.End, resolved)
		if err != nil {
			return err
		}
		r.end = &end
	}
	return nil
}

func checkAnchorCoordinate(field string, loc Location) error {
	if loc.Coordinate == nil {
		return nil
	}
	if err := loc.Coordinate.Validate(); err != nil {
		return domain.NewValidationError(field+".coordinate", "%v", err)
	}
	return nil
}

func anchorCoordinate(field string, loc Location, resolved map[string]domain.Resolution) (domain.Coordinate, error) {
	if loc.Coordinate != nil {
		return *loc.Coordinate, nil
	}

	res := resolved[loc.Address]
	if !res.OK() {
		reason := "not resolved"
		if res.Failure != nil {
			reason = res.Failure.Reason
		}
		return domain.Coordinate{}, domain.NewValidationError(field, "cannot resolve %q: %s", loc.Address, reason)
	}
	return *res.Coordinate, nil
}

func (p *RoutePipeline) geocode(ctx context.Context, r *run) {
	r.unresolved = make(map[string]string)
	r.resolved = make([]domain.Stop, 0, len(r.req.Stops))

	var addrs []string
	for _, s := range r.req.Stops {
		if s.Coordinate == nil {
			addrs = append(addrs, s.Address)
		}
	}

	var resolutions map[string]domain.Resolution
	if len(addrs) > 0 {
		resolutions = p.resolver.Resolve(ctx, addrs)
	}

	for _, s := range r.req.Stops {
		if s.Coordinate != nil {
			r.resolved = append(r.resolved, s.WithCoordinate(*s.Coordinate))
			continue
		}

		res := resolutions[s.Address]
		if res.OK() {
			r.resolved = append(r.resolved, s.WithCoordinate(*res.Coordinate))
			continue
		}

		reason := "not resolved"
		if res.Failure != nil {
			reason = res.Failure.Reason
		}
		r.unresolved[s.ExternalID] = reason
	}
}

func (p *RoutePipeline) optimize(ctx context.Context, r *run) (domain.RouteResult, error) {
	log := obs.FromContext(ctx)
	fallbackReason := ""

	switch {
	case p.remote == nil:
	case r.req.Optimizer == OptimizerLocal:
		fallbackReason = "local optimizer requested"
	case len(r.resolved) == 0:
		fallbackReason = "no resolved stops"
	default:
		vehicle := domain.Vehicle{
			ID:       r.req.Vehicle.ID,
			Start:    r.start,
			End:      r.end,
			Capacity: r.req.Vehicle.Capacity,
		}

		res, err := p.remote.Optimize(ctx, vehicle, r.resolved)
		if err == nil {
			err = checkRemoteResult(res, r.resolved, r.end != nil)
		}
		if err == nil {
			res.OptimizerUsed = domain.OptimizerRemote
			return res, nil
		}
		if ctx.Err() != nil {
			return domain.RouteResult{}, ctx.Err()
		}

		kind := "rejected"
		if errors.Is(err, domain.ErrProviderUnavailable) {
			kind = "unavailable"
		}
		metrics.RemoteFallbacksTotal.WithLabelValues(kind).Inc()
		log.WarnContext(ctx, "remote optimizer failed, using local", "kind", kind, "error", err)
		fallbackReason = err.Error()
	}

	res, err := p.local.Optimize(r.start, r.resolved, r.end)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("local optimize: %w", err)
	}
	res.FallbackReason = fallbackReason
	return res, nil
}

// checkRemoteResult verifies every stop is visited exactly once and that the
// route is closed by a final end leg exactly when an end anchor was requested.
func checkRemoteResult(res domain.RouteResult, stops []domain.Stop, wantEnd bool) error {
	want := make(map[string]bool, len(stops))
	for _, s := range stops {
		want[s.ExternalID] = false
	}

	hasEnd := false
	for i, leg := range res.OrderedLegs {
		if leg.ToStopID == domain.EndLocationID {
			if i != len(res.OrderedLegs)-1 {
				return domain.Rejected("remote", fmt.Errorf("end leg at position %d of %d", i+1, len(res.OrderedLegs)))
			}
			hasEnd = true
			continue
		}
		visited, known := want[leg.ToStopID]
		if !known {
			return domain.Rejected("remote", fmt.Errorf("unknown stop %q in result", leg.ToStopID))
		}
		if visited {
			return domain.Rejected("remote", fmt.Errorf("stop %q visited twice", leg.ToStopID))
		}
		want[leg.ToStopID] = true
	}

	for id, visited := range want {
		if !visited {
			return domain.Rejected("remote", fmt.Errorf("stop %q missing from result", id))
		}
	}

	switch {
	case wantEnd && !hasEnd:
		return domain.Rejected("remote", errors.New("route does not return to the end location"))
	case !wantEnd && hasEnd:
		return domain.Rejected("remote", errors.New("end leg without an end location"))
	}
	return nil
}

func (p *RoutePipeline) assemble(r *run, res domain.RouteResult) domain.RouteResult {
	out := domain.RouteResult{
		OrderedLegs:       make([]domain.RouteLeg, len(res.OrderedLegs)),
		UnresolvedStopIDs: make([]string, 0, len(r.unresolved)),
		Failures:          make(map[string]string, len(r.unresolved)),
		OptimizerUsed:     res.OptimizerUsed,
		FallbackReason:    res.FallbackReason,
	}
	copy(out.OrderedLegs, res.OrderedLegs)

	for id, reason := range r.unresolved {
		out.UnresolvedStopIDs = append(out.UnresolvedStopIDs, id)
		out.Failures[id] = reason
	}
	sort.Strings(out.UnresolvedStopIDs)

	var clock time.Time
	if r.req.DepartAt != nil {
		clock = *r.req.DepartAt
	}

	for i := range out.OrderedLegs {
		leg := &out.OrderedLegs[i]
		out.TotalDistanceKm += leg.DistanceKm
		out.TotalTimeMinutes += leg.TravelTimeMinutes + leg.ServiceMinutes

		if r.req.DepartAt != nil {
			arrive := clock.Add(minutes(leg.TravelTimeMinutes))
			leg.ArriveAt = &arrive
			clock = arrive.Add(minutes(leg.ServiceMinutes))
		}
	}

	return out
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
