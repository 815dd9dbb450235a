package domain

import "time"

type OptimizerKind string

const (
	OptimizerLocal  OptimizerKind = "local"
	OptimizerRemote OptimizerKind = "remote"
)

// Represents one traversal in a planned route.
// FromStopID is nil for the first leg out of the start anchor; ToStopID is
// EndLocationID for the closing leg into the end anchor.
type RouteLeg struct {
	FromStopID        *string
	ToStopID          string
	DistanceKm        float64
	TravelTimeMinutes float64
	ServiceMinutes    float64
	ArriveAt          *time.Time
}

// Represents the outcome of one pipeline run.
// OrderedLegs are in visiting order. TotalDistanceKm is the sum of leg
// distances; TotalTimeMinutes adds service time at visited stops.
// UnresolvedStopIDs is sorted and disjoint from the stops in OrderedLegs.
type RouteResult struct {
	OrderedLegs       []RouteLeg
	TotalDistanceKm   float64
	TotalTimeMinutes  float64
	UnresolvedStopIDs []string
	Failures          map[string]string
	OptimizerUsed     OptimizerKind
	FallbackReason    string
}

// VisitedStopIDs returns the stop ids in visiting order, excluding the end anchor.
func (r RouteResult) VisitedStopIDs() []string {
	ids := make([]string, 0, len(r.OrderedLegs))
	for _, leg := range r.OrderedLegs {
		if leg.ToStopID == EndLocationID {
			continue
		}
		ids = append(ids, leg.ToStopID)
	}
	return ids
}

// A persisted route produced for a driver.
type RouteRecord struct {
	ID         string
	DriverID   *int64
	Name       string
	StartLabel string
	EndLabel   string
	TotalStops int
	Result     RouteResult
	CreatedAt  time.Time
}
