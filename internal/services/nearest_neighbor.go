package services

import (
	"route-optimization-service/internal/domain"
	"sort"
)

// LocalOptimizer sequences stops with a greedy nearest-neighbor walk over
// great-circle distance. It has no network dependency and cannot fail on valid
// input, which makes it the fallback for the remote optimizer.
type LocalOptimizer struct {
	AvgSpeedKmh float64
}

func NewLocalOptimizer(avgSpeedKmh float64) *LocalOptimizer {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = domain.DefaultAvgSpeedKmh
	}
	return &LocalOptimizer{AvgSpeedKmh: avgSpeedKmh}
}

// Optimize orders stops starting from start, appending a closing leg to end when given.
//
// At each step the nearest unvisited stop wins. Exact ties go to the lowest
// Priority value, then to the earlier stop in input order. Stops without a
// coordinate are skipped and reported in UnresolvedStopIDs.
// The only error is a *domain.MetricError for an invalid coordinate.
func (o *LocalOptimizer) Optimize(
	start domain.Coordinate,
	stops []domain.Stop,
	end *domain.Coordinate,
) (domain.RouteResult, error) {
	res := domain.RouteResult{
		OrderedLegs:       make([]domain.RouteLeg, 0, len(stops)+1),
		UnresolvedStopIDs: []string{},
		OptimizerUsed:     domain.OptimizerLocal,
	}

	remaining := make([]int, 0, len(stops))
	for i, s := range stops {
		if s.Coordinate == nil {
			res.UnresolvedStopIDs = append(res.UnresolvedStopIDs, s.ExternalID)
			continue
		}
		remaining = append(remaining, i)
	}
	sort.Strings(res.UnresolvedStopIDs)

	current := start
	var currentID *string

	for len(remaining) > 0 {
		bestPos := -1
		bestDist := 0.0

		// remaining stays in input order, so a strict comparison keeps the earlier stop on full ties
		for pos, idx := range remaining {
			d, err := domain.Distance(current, *stops[idx].Coordinate)
			if err != nil {
				return domain.RouteResult{}, err
			}

			if bestPos < 0 || d < bestDist ||
				(d == bestDist && stops[idx].Priority < stops[remaining[bestPos]].Priority) {
				bestPos = pos
				bestDist = d
			}
		}

		next := stops[remaining[bestPos]]
		o.appendLeg(&res, currentID, next.ExternalID, bestDist, next.ServiceTime.Minutes())

		id := next.ExternalID
		currentID = &id
		current = *next.Coordinate
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	if end != nil {
		d, err := domain.Distance(current, *end)
		if err != nil {
			return domain.RouteResult{}, err
		}
		o.appendLeg(&res, currentID, domain.EndLocationID, d, 0)
	}

	return res, nil
}

func (o *LocalOptimizer) appendLeg(res *domain.RouteResult, from *string, to string, km, serviceMinutes float64) {
	travel := domain.ETA(km, o.AvgSpeedKmh)
	res.OrderedLegs = append(res.OrderedLegs, domain.RouteLeg{
		FromStopID:        from,
		ToStopID:          to,
		DistanceKm:        km,
		TravelTimeMinutes: travel,
		ServiceMinutes:    serviceMinutes,
	})
	res.TotalDistanceKm += km
	res.TotalTimeMinutes += travel + serviceMinutes
}
