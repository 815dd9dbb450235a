package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"strings"
	"time"
)

// SQLGeocodeCache is a Postgres-backed cache mapping normalized addresses to coordinates.
// Rows outlive their TTL until PurgeExpired runs; reads filter them out.
type SQLGeocodeCache struct {
	DB  *sql.DB
	ttl TTLPolicy
	now func() time.Time
}

func NewSQLGeocodeCache(db *sql.DB, ttl TTLPolicy) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: db, ttl: ttl, now: time.Now}
}

func (s *SQLGeocodeCache) Get(ctx context.Context, key string) (_ *domain.GeocodeCacheEntry, err error) {
	defer obs.Time(ctx, "geocode.cache.sql.Get")(&err)

	hits, err := s.GetMany(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	e, ok := hits[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Fetch live cached entries for the given keys. Expired and missing keys are absent from the result.
func (s *SQLGeocodeCache) GetMany(
	ctx context.Context,
	keys []string,
) (map[string]domain.GeocodeCacheEntry, error) {
	if s.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}

	if len(uniq) == 0 {
		return map[string]domain.GeocodeCacheEntry{}, nil
	}

	q := `
	SELECT address, lat, lon, failed, resolved_at
	FROM geocode_cache
	WHERE address = ANY($1::text[]);
	`

	rows, err := s.DB.QueryContext(ctx, q, uniq)
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: query geocode_cache table: %w", err)
	}
	defer rows.Close()

	now := s.now()
	out := make(map[string]domain.GeocodeCacheEntry, len(uniq))
	for rows.Next() {
		var (
			addr       string
			lat, lon   sql.NullFloat64
			failed     bool
			resolvedAt time.Time
		)
		if err := rows.Scan(&addr, &lat, &lon, &failed, &resolvedAt); err != nil {
			return nil, fmt.Errorf("get geocode cache: scan rows: %w", err)
		}

		e := domain.GeocodeCacheEntry{NormalizedAddress: addr, ResolvedAt: resolvedAt, Failed: failed}
		if !failed {
			if !lat.Valid || !lon.Valid {
				return nil, fmt.Errorf("get geocode cache: row %q has no coordinate", addr)
			}
			e.Coordinate = &domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		if s.ttl.Expired(e, now) {
			continue
		}
		out[addr] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocode cache: row iteration: %w", err)
	}

	return out, nil
}

func (s *SQLGeocodeCache) Put(ctx context.Context, key string, coord *domain.Coordinate) (err error) {
	defer obs.Time(ctx, "geocode.cache.sql.Put")(&err)
	return s.PutMany(ctx, map[string]*domain.Coordinate{key: coord})
}

// Store key -> coordinate mappings in one transaction. A nil coordinate records a failure.
func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]*domain.Coordinate) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert geocode cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO geocode_cache (address, lat, lon, failed, resolved_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (address) DO UPDATE
	SET lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		failed = EXCLUDED.failed,
		resolved_at = EXCLUDED.resolved_at;
	`)
	if err != nil {
		return fmt.Errorf("insert geocode cache: db prepare: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for addr, c := range results {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("insert geocode cache: empty address key")
		}

		var lat, lon sql.NullFloat64
		if c != nil {
			lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, addr, lat, lon, c == nil, now); err != nil {
			return fmt.Errorf("insert geocode cache address=%q: %w", addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert geocode cache commit: %w", err)
	}

	return nil
}

// PurgeExpired deletes rows past their TTL and returns how many were removed.
func (s *SQLGeocodeCache) PurgeExpired(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "geocode.cache.sql.PurgeExpired")(&err)

	if s.DB == nil {
		return 0, errors.New("geocode cache: db is nil")
	}

	now := s.now().UTC()
	res, err := s.DB.ExecContext(ctx, `
	DELETE FROM geocode_cache
	WHERE (failed AND resolved_at <= $1)
	   OR (NOT failed AND resolved_at <= $2);
	`, now.Add(-s.ttl.Failure), now.Add(-s.ttl.Success))
	if err != nil {
		return 0, fmt.Errorf("purge geocode cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge geocode cache: rows affected: %w", err)
	}
	return int(n), nil
}
