package domain

import "time"

// Reserved leg target for the final leg into the end anchor.
const EndLocationID = "@end"

// Represents one delivery stop from a route request.
// Coordinate is nil until the stop is geocoded. Stops are never mutated after
// optimization; the visiting order lives in RouteResult.
type Stop struct {
	ExternalID  string
	Address     string
	Coordinate  *Coordinate
	Priority    int
	ServiceTime time.Duration
	Demand      int
}

// WithCoordinate returns a copy of the stop carrying c.
func (s Stop) WithCoordinate(c Coordinate) Stop {
	s.Coordinate = &c
	return s
}

// Vehicle is the single-driver vehicle descriptor sent to a remote optimizer.
type Vehicle struct {
	ID       int
	Start    Coordinate
	End      *Coordinate
	Capacity int
}
