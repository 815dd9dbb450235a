package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/domain"
)

// Initialize the Postgres schema for routes, vehicles and the shared geocode cache.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS routes (
		id UUID PRIMARY KEY,
		driver_id BIGINT,
		name TEXT NOT NULL DEFAULT '',
		start_label TEXT NOT NULL DEFAULT '',
		end_label TEXT NOT NULL DEFAULT '',
		total_stops INTEGER NOT NULL,
		total_distance_km DOUBLE PRECISION NOT NULL,
		total_time_minutes DOUBLE PRECISION NOT NULL,
		optimizer TEXT NOT NULL,
		result JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		failed BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_at TIMESTAMPTZ NOT NULL
	);
	`

	createVehiclesQuery := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		vehicle_type TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		start_address TEXT NOT NULL DEFAULT '',
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ
	);
	`

	createDriverIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_routes_driver_created
	ON routes(driver_id, created_at DESC);
	`

	createResolvedIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_geocode_cache_resolved_at
	ON geocode_cache(resolved_at);
	`

	statements := []string{
		createRoutesQuery,
		createGeocodeCacheQuery,
		createVehiclesQuery,
		createDriverIndexQuery,
		createResolvedIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type GeocodeSeed struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// LoadGeocodeSeeds reads known addresses from a JSON file, keyed the same way
// the geocoder normalizes lookups.
func LoadGeocodeSeeds(jsonPath string) (map[string]*domain.Coordinate, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", jsonPath, err)
	}

	var data []GeocodeSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	rows := make(map[string]*domain.Coordinate, len(data))
	for i, item := range data {
		key := domain.NormalizeAddress(item.Address)
		if key == "" {
			return nil, fmt.Errorf("item at index %d: address cannot be empty", i+1)
		}
		if _, dup := rows[key]; dup {
			return nil, fmt.Errorf("item %q: duplicate address", item.Address)
		}

		c, err := domain.NewCoordinate(item.Lat, item.Lon)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Address, err)
		}
		rows[key] = &c
	}
	return rows, nil
}

// Pre-populate the geocode cache with known addresses from a JSON file.
func SeedGeocodeCacheFromJSON(ctx context.Context, gc *cache.SQLGeocodeCache, jsonPath string) (int, error) {
	rows, err := LoadGeocodeSeeds(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed geocode cache: %w", err)
	}

	if err := gc.PutMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("seed geocode cache: %w", err)
	}

	return len(rows), nil
}
