package routing

import (
	"context"
	"route-optimization-service/internal/domain"
	"sync"
)

// MockOptimizer returns a scripted result or error and records what it was asked.
// With neither set, it visits stops in input order with zero-length legs,
// closing with an end leg when the vehicle has an end.
type MockOptimizer struct {
	mu     sync.Mutex
	Result *domain.RouteResult
	Err    error
	calls  int
	last   []domain.Stop
}

func (m *MockOptimizer) Optimize(ctx context.Context, v domain.Vehicle, stops []domain.Stop) (domain.RouteResult, error) {
	m.mu.Lock()
	m.calls++
	m.last = append([]domain.Stop(nil), stops...)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, domain.Unavailable("mock", err)
	}
	if m.Err != nil {
		return domain.RouteResult{}, m.Err
	}
	if m.Result != nil {
		return *m.Result, nil
	}

	res := domain.RouteResult{OptimizerUsed: domain.OptimizerRemote}
	var prev *string
	for _, s := range stops {
		res.OrderedLegs = append(res.OrderedLegs, domain.RouteLeg{FromStopID: prev, ToStopID: s.ExternalID})
		id := s.ExternalID
		prev = &id
	}
	if v.End != nil {
		res.OrderedLegs = append(res.OrderedLegs, domain.RouteLeg{FromStopID: prev, ToStopID: domain.EndLocationID})
	}
	return res, nil
}

func (m *MockOptimizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockOptimizer) LastStops() []domain.Stop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
