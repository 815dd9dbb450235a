package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"time"

	"github.com/google/uuid"
)

const defaultListLimit = 50

// Postgres-backed implementation of the RouteRepository port.
type PostgresRouteRepository struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPostgresRouteRepository(db *sql.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{DB: db, now: time.Now}
}

type storedLeg struct {
	FromStopID        *string    `json:"from_stop_id"`
	ToStopID          string     `json:"to_stop_id"`
	DistanceKm        float64    `json:"distance_km"`
	TravelTimeMinutes float64    `json:"travel_time_minutes"`
	ServiceMinutes    float64    `json:"service_minutes"`
	ArriveAt          *time.Time `json:"arrive_at,omitempty"`
}

type storedResult struct {
	Legs              []storedLeg       `json:"legs"`
	UnresolvedStopIDs []string          `json:"unresolved_stop_ids"`
	Failures          map[string]string `json:"failures,omitempty"`
	FallbackReason    string            `json:"fallback_reason,omitempty"`
}

func encodeResult(r domain.RouteResult) ([]byte, error) {
	sr := storedResult{
		Legs:              make([]storedLeg, 0, len(r.OrderedLegs)),
		UnresolvedStopIDs: r.UnresolvedStopIDs,
		Failures:          r.Failures,
		FallbackReason:    r.FallbackReason,
	}
	for _, l := range r.OrderedLegs {
		sr.Legs = append(sr.Legs, storedLeg(l))
	}
	return json.Marshal(sr)
}

func decodeResult(raw []byte, dist, minutes float64, optimizer string) (domain.RouteResult, error) {
	var sr storedResult
	if err := json.Unmarshal(raw, &sr); err != nil {
		return domain.RouteResult{}, err
	}

	r := domain.RouteResult{
		OrderedLegs:       make([]domain.RouteLeg, 0, len(sr.Legs)),
		TotalDistanceKm:   dist,
		TotalTimeMinutes:  minutes,
		UnresolvedStopIDs: sr.UnresolvedStopIDs,
		Failures:          sr.Failures,
		OptimizerUsed:     domain.OptimizerKind(optimizer),
		FallbackReason:    sr.FallbackReason,
	}
	for _, l := range sr.Legs {
		r.OrderedLegs = append(r.OrderedLegs, domain.RouteLeg(l))
	}
	return r, nil
}

// Save inserts rec, assigning its ID and CreatedAt.
func (p *PostgresRouteRepository) Save(ctx context.Context, rec *domain.RouteRecord) (err error) {
	defer obs.Time(ctx, "routes.Save")(&err)

	if p.DB == nil {
		return errors.New("postgres route repository: DB is nil")
	}

	raw, err := encodeResult(rec.Result)
	if err != nil {
		return fmt.Errorf("save route: encode result: %w", err)
	}

	id := uuid.NewString()
	createdAt := p.now().UTC().Truncate(time.Microsecond)

	query := `
	INSERT INTO routes (
		id, driver_id, name, start_label, end_label, total_stops,
		total_distance_km, total_time_minutes, optimizer, result, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err = p.DB.ExecContext(ctx, query,
		id, rec.DriverID, rec.Name, rec.StartLabel, rec.EndLabel, rec.TotalStops,
		rec.Result.TotalDistanceKm, rec.Result.TotalTimeMinutes, string(rec.Result.OptimizerUsed),
		raw, createdAt,
	)
	if err != nil {
		return fmt.Errorf("save route: insert: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

const selectRouteColumns = `
	SELECT id, driver_id, name, start_label, end_label, total_stops,
		total_distance_km, total_time_minutes, optimizer, result, created_at
	FROM routes
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (domain.RouteRecord, error) {
	var (
		rec       domain.RouteRecord
		driverID  sql.NullInt64
		dist      float64
		minutes   float64
		optimizer string
		raw       []byte
	)
	if err := row.Scan(
		&rec.ID, &driverID, &rec.Name, &rec.StartLabel, &rec.EndLabel, &rec.TotalStops,
		&dist, &minutes, &optimizer, &raw, &rec.CreatedAt,
	); err != nil {
		return domain.RouteRecord{}, err
	}

	if driverID.Valid {
		id := driverID.Int64
		rec.DriverID = &id
	}

	res, err := decodeResult(raw, dist, minutes, optimizer)
	if err != nil {
		return domain.RouteRecord{}, fmt.Errorf("decode result: %w", err)
	}
	rec.Result = res
	return rec, nil
}

// Get returns domain.ErrRouteNotFound for unknown or malformed ids.
func (p *PostgresRouteRepository) Get(ctx context.Context, id string) (_ *domain.RouteRecord, err error) {
	defer obs.Time(ctx, "routes.Get")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}
	if _, perr := uuid.Parse(id); perr != nil {
		return nil, domain.ErrRouteNotFound
	}

	row := p.DB.QueryRowContext(ctx, selectRouteColumns+` WHERE id = $1;`, id)
	rec, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes one route. Unknown or malformed ids return domain.ErrRouteNotFound.
func (p *PostgresRouteRepository) Delete(ctx context.Context, id string) (err error) {
	defer obs.Time(ctx, "routes.Delete")(&err)

	if p.DB == nil {
		return errors.New("postgres route repository: DB is nil")
	}
	if _, perr := uuid.Parse(id); perr != nil {
		return domain.ErrRouteNotFound
	}

	res, err := p.DB.ExecContext(ctx, `DELETE FROM routes WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete route %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete route %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return domain.ErrRouteNotFound
	}
	return nil
}

func (p *PostgresRouteRepository) ListByDriver(ctx context.Context, driverID int64, limit int) (_ []domain.RouteRecord, err error) {
	defer obs.Time(ctx, "routes.ListByDriver")(&err)

	return p.list(ctx, selectRouteColumns+` WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2;`,
		driverID, normalizeLimit(limit))
}

func (p *PostgresRouteRepository) List(ctx context.Context, limit int) (_ []domain.RouteRecord, err error) {
	defer obs.Time(ctx, "routes.List")(&err)

	return p.list(ctx, selectRouteColumns+` ORDER BY created_at DESC LIMIT $1;`, normalizeLimit(limit))
}

func (p *PostgresRouteRepository) list(ctx context.Context, query string, args ...any) ([]domain.RouteRecord, error) {
	if p.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RouteRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}

	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
