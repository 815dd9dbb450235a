package geocoding

import (
	"context"
	"route-optimization-service/internal/domain"
	"sync"
)

// MockProvider is a deterministic GeocodeProvider keyed by the exact address string.
// Unknown addresses produce no candidates. Errors, when set, take precedence.
type MockProvider struct {
	mu      sync.Mutex
	results map[string][]domain.GeocodeCandidate
	errs    map[string][]error
	calls   map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		results: make(map[string][]domain.GeocodeCandidate),
		errs:    make(map[string][]error),
		calls:   make(map[string]int),
	}
}

// Set registers a single full-confidence candidate for address.
func (m *MockProvider) Set(address string, c domain.Coordinate) *MockProvider {
	return m.SetCandidates(address, domain.GeocodeCandidate{Coordinate: c, Confidence: 1})
}

func (m *MockProvider) SetCandidates(address string, cands ...domain.GeocodeCandidate) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[address] = cands
	return m
}

// FailNext queues errors returned by successive calls for address, before falling
// back to the registered candidates.
func (m *MockProvider) FailNext(address string, errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[address] = append(m.errs[address], errs...)
	return m
}

func (m *MockProvider) Geocode(ctx context.Context, address string) ([]domain.GeocodeCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[address]++
	if q := m.errs[address]; len(q) > 0 {
		m.errs[address] = q[1:]
		return nil, q[0]
	}
	return append([]domain.GeocodeCandidate(nil), m.results[address]...), nil
}

func (m *MockProvider) Calls(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[address]
}

func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}
