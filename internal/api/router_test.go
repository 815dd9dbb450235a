package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/adapters/geocoding"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/api/handlers"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/logger"
	"route-optimization-service/internal/services"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type memoryRepo struct {
	mu      sync.Mutex
	seq     int
	records []domain.RouteRecord
	failAll bool
}

func (m *memoryRepo) Save(_ context.Context, rec *domain.RouteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("db down")
	}
	m.seq++
	rec.ID = "route-" + strconv.Itoa(m.seq)
	rec.CreatedAt = time.Date(2024, 1, 1, 0, m.seq, 0, 0, time.UTC)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*domain.RouteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.ErrRouteNotFound
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrRouteNotFound
}

func (m *memoryRepo) ListByDriver(_ context.Context, driverID int64, limit int) ([]domain.RouteRecord, error) {
	all, _ := m.List(context.Background(), 0)
	out := []domain.RouteRecord{}
	for _, r := range all {
		if r.DriverID != nil && *r.DriverID == driverID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, limit int) ([]domain.RouteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.RouteRecord(nil), m.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryVehicles struct {
	mu   sync.Mutex
	seq  int64
	byID map[int64]domain.VehicleProfile
}

func newMemoryVehicles() *memoryVehicles {
	return &memoryVehicles{byID: map[int64]domain.VehicleProfile{}}
}

func (m *memoryVehicles) Create(_ context.Context, v *domain.VehicleProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	v.ID = m.seq
	v.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.byID[v.ID] = *v
	return nil
}

func (m *memoryVehicles) Get(_ context.Context, id int64) (*domain.VehicleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return &v, nil
}

func (m *memoryVehicles) List(_ context.Context, available *bool, limit int) ([]domain.VehicleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.VehicleProfile{}
	for _, v := range m.byID {
		if available == nil || v.Available == *available {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryVehicles) Update(_ context.Context, v *domain.VehicleProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[v.ID]; !ok {
		return domain.ErrVehicleNotFound
	}
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	v.UpdatedAt = &now
	m.byID[v.ID] = *v
	return nil
}

func (m *memoryVehicles) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrVehicleNotFound
	}
	delete(m.byID, id)
	return nil
}

// capturePlanner remembers the last request handed to the pipeline.
type capturePlanner struct {
	next handlers.RoutePlanner
	mu   sync.Mutex
	last services.RouteRequest
}

func (c *capturePlanner) Run(ctx context.Context, req services.RouteRequest) (domain.RouteResult, error) {
	c.mu.Lock()
	c.last = req
	c.mu.Unlock()
	return c.next.Run(ctx, req)
}

func (c *capturePlanner) lastRequest() services.RouteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func newTestServer(t *testing.T, repo *memoryRepo) *httptest.Server {
	t.Helper()
	srv, _ := newFleetServer(t, repo, nil)
	return srv
}

// newFleetServer wires a vehicle registry when vehicles is non-nil.
func newFleetServer(t *testing.T, repo *memoryRepo, vehicles *memoryVehicles) (*httptest.Server, *capturePlanner) {
	t.Helper()

	provider := geocoding.NewMockProvider().
		Set("Colombo Fort", domain.Coordinate{Lat: 6.9271, Lon: 79.8612}).
		Set("Nugegoda", domain.Coordinate{Lat: 6.8649, Lon: 79.8997})
	geocoder := services.NewGeocoder(
		provider,
		cache.NewMemoryGeocodeCache(cache.DefaultTTLPolicy()),
		rate.NewLimiter(rate.Inf, 1),
		services.GeocoderConfig{Retries: 0, Concurrency: 2},
	)
	planner := &capturePlanner{next: services.NewRoutePipeline(geocoder, nil, services.NewLocalOptimizer(30), 10)}

	routes := &handlers.RouteHandler{Planner: planner, Repo: repo}
	var vh *handlers.VehicleHandler
	if vehicles != nil {
		routes.Vehicles = vehicles
		vh = &handlers.VehicleHandler{Repo: vehicles}
	}

	h := NewRouter(Deps{
		Routes:   routes,
		Geocode:  &handlers.GeocodeHandler{Resolver: geocoder, MaxAddresses: 10},
		Health:   &handlers.HealthHandler{},
		Vehicles: vh,
		Logger:   logger.Discard(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, planner
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const optimizeBody = `{
	"driver_id": 7,
	"name": "Morning",
	"start": {"address": "Colombo Fort"},
	"end": {"address": "Nugegoda"},
	"orders": [
		{"id": "ORD001", "lat": 6.9344, "lon": 79.8428, "service_minutes": 5},
		{"id": "ORD002", "lat": 6.8905, "lon": 79.8565},
		{"id": "ORD003", "address": "Unknown Place 42"}
	]
}`

func TestOptimizeRoute(t *testing.T) {
	repo := &memoryRepo{}
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/v1/routes/optimize", optimizeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out dto.RouteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, "route-1", out.ID)
	assert.Equal(t, "local", out.OptimizerUsed)
	require.Len(t, out.Legs, 3)
	assert.Nil(t, out.Legs[0].From)
	assert.Equal(t, "ORD001", out.Legs[0].To)
	assert.Equal(t, 5.0, out.Legs[0].ServiceMinutes)
	assert.Equal(t, "ORD002", out.Legs[1].To)
	assert.Equal(t, domain.EndLocationID, out.Legs[2].To)
	assert.Equal(t, []string{"ORD003"}, out.UnresolvedStopIDs)
	assert.Equal(t, "no match", out.Failures["ORD003"])

	require.Len(t, repo.records, 1)
	assert.Equal(t, "Colombo Fort", repo.records[0].StartLabel)
	assert.Equal(t, 3, repo.records[0].TotalStops)
}

func TestOptimizeRouteStillAnswersWhenStorageFails(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{failAll: true})

	resp := postJSON(t, srv.URL+"/v1/routes/optimize", optimizeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.RouteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.ID)
	assert.Len(t, out.Legs, 3)
}

func TestOptimizeRouteBadRequests(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	cases := map[string]string{
		"not json":      `{`,
		"unknown field": `{"start":{"address":"Colombo Fort"},"orders":[],"bogus":1}`,
		"duplicate ids": `{"start":{"address":"Colombo Fort"},"orders":[{"id":"A","lat":1,"lon":1},{"id":"A","lat":2,"lon":2}]}`,
		"half coord":    `{"start":{"lat":6.9},"orders":[{"id":"A","lat":1,"lon":1}]}`,
		"empty orders":  `{"start":{"address":"Colombo Fort"},"orders":[]}`,
		"two objects":   `{"start":{"address":"Colombo Fort"}}{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/v1/routes/optimize", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetAndListRoutes(t *testing.T) {
	repo := &memoryRepo{}
	srv := newTestServer(t, repo)

	postJSON(t, srv.URL+"/v1/routes/optimize", optimizeBody)
	postJSON(t, srv.URL+"/v1/routes/optimize", `{"driver_id": 8, "start":{"address":"Colombo Fort"},"orders":[{"id":"X","lat":6.9,"lon":79.85}]}`)

	resp, err := http.Get(srv.URL + "/v1/routes/route-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one dto.RouteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	assert.Equal(t, "route-1", one.ID)
	assert.NotNil(t, one.CreatedAt)

	resp, err = http.Get(srv.URL + "/v1/routes/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/routes?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list dto.ListRoutesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Routes, 2)
	assert.Equal(t, "route-2", list.Routes[0].ID)

	resp, err = http.Get(srv.URL + "/v1/drivers/7/routes")
	require.NoError(t, err)
	defer resp.Body.Close()
	list = dto.ListRoutesResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Routes, 1)
	assert.Equal(t, "Morning", list.Routes[0].Name)

	resp, err = http.Get(srv.URL + "/v1/drivers/abc/routes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/routes?limit=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeocodeEndpoint(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	resp := postJSON(t, srv.URL+"/v1/geocode", `{"addresses":["Colombo Fort","Atlantis"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.GeocodeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 2)
	require.NotNil(t, out.Results[0].Lat)
	assert.InDelta(t, 6.9271, *out.Results[0].Lat, 1e-9)
	assert.Equal(t, "no match", out.Results[1].Error)

	resp = postJSON(t, srv.URL+"/v1/geocode", `{"addresses":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/health", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-abc")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "trace-abc", resp.Header.Get("X-Request-ID"))
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	resp, err := http.Get(srv.URL + "/v1/routes/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "route not found", body["error"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, resp.Header.Get("X-Request-ID"), body["request_id"])
}

func TestDeleteRoute(t *testing.T) {
	repo := &memoryRepo{}
	srv := newTestServer(t, repo)

	postJSON(t, srv.URL+"/v1/routes/optimize", optimizeBody)
	require.Len(t, repo.records, 1)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/v1/routes/route-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, repo.records)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/v1/routes/route-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVehicleEndpoints(t *testing.T) {
	srv, _ := newFleetServer(t, &memoryRepo{}, newMemoryVehicles())

	resp := postJSON(t, srv.URL+"/v1/vehicles", `{"name":"Van 1","vehicle_type":"van","capacity":12,"start_address":"Colombo Fort"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created dto.VehicleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.Available)

	resp = postJSON(t, srv.URL+"/v1/vehicles", `{"name":"Bike","capacity":2,"is_available":false}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/vehicles", `{"name":" ","capacity":2}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles?is_available=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.ListVehiclesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, "Van 1", list.Vehicles[0].Name)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles?is_available=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, srv.URL+"/v1/vehicles/1", `{"capacity":20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated dto.VehicleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, 20, updated.Capacity)
	assert.Equal(t, "Van 1", updated.Name)
	assert.NotNil(t, updated.UpdatedAt)

	resp = doRequest(t, http.MethodPut, srv.URL+"/v1/vehicles/1", `{"capacity":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/v1/vehicles/2", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVehicleEndpointsWithoutStorage(t *testing.T) {
	srv := newTestServer(t, &memoryRepo{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/1", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestOptimizeRouteUsesRegisteredVehicle(t *testing.T) {
	vehicles := newMemoryVehicles()
	require.NoError(t, vehicles.Create(context.Background(), &domain.VehicleProfile{
		Name: "Van 1", Capacity: 12, StartAddress: "Colombo Fort", Available: true,
	}))
	repo := &memoryRepo{}
	srv, planner := newFleetServer(t, repo, vehicles)

	resp := postJSON(t, srv.URL+"/v1/routes/optimize", `{"start":{},"vehicle":{"id":1},"orders":[{"id":"A","lat":6.9344,"lon":79.8428}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := planner.lastRequest()
	assert.Equal(t, 1, got.Vehicle.ID)
	assert.Equal(t, 12, got.Vehicle.Capacity)
	assert.Equal(t, "Colombo Fort", got.Start.Address)
	require.Len(t, repo.records, 1)
	assert.Equal(t, "Colombo Fort", repo.records[0].StartLabel)

	resp = postJSON(t, srv.URL+"/v1/routes/optimize", `{"start":{"address":"Nugegoda"},"vehicle":{"id":1,"capacity":3},"orders":[{"id":"A","lat":6.9344,"lon":79.8428}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = planner.lastRequest()
	assert.Equal(t, 3, got.Vehicle.Capacity)
	assert.Equal(t, "Nugegoda", got.Start.Address)
}

func TestOptimizeRouteRejectsUnusableVehicle(t *testing.T) {
	vehicles := newMemoryVehicles()
	require.NoError(t, vehicles.Create(context.Background(), &domain.VehicleProfile{
		Name: "Parked", Capacity: 4, StartAddress: "Colombo Fort", Available: false,
	}))
	srv, _ := newFleetServer(t, &memoryRepo{}, vehicles)

	for name, id := range map[string]int{"unknown": 99, "unavailable": 1} {
		t.Run(name, func(t *testing.T) {
			body := `{"start":{"address":"Colombo Fort"},"vehicle":{"id":` + strconv.Itoa(id) + `},"orders":[{"id":"A","lat":6.9344,"lon":79.8428}]}`
			resp := postJSON(t, srv.URL+"/v1/routes/optimize", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
