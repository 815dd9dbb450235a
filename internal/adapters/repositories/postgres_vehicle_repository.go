package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/obs"
	"time"
)

// Postgres-backed implementation of the VehicleRepository port.
type PostgresVehicleRepository struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPostgresVehicleRepository(db *sql.DB) *PostgresVehicleRepository {
	return &PostgresVehicleRepository{DB: db, now: time.Now}
}

const selectVehicleColumns = `
	SELECT id, name, vehicle_type, capacity, start_address, available, created_at, updated_at
	FROM vehicles
`

func scanVehicle(row rowScanner) (domain.VehicleProfile, error) {
	var (
		v         domain.VehicleProfile
		updatedAt sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Type, &v.Capacity, &v.StartAddress, &v.Available, &v.CreatedAt, &updatedAt); err != nil {
		return domain.VehicleProfile{}, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		v.UpdatedAt = &t
	}
	return v, nil
}

func (p *PostgresVehicleRepository) Create(ctx context.Context, v *domain.VehicleProfile) (err error) {
	defer obs.Time(ctx, "vehicles.Create")(&err)

	if p.DB == nil {
		return errors.New("postgres vehicle repository: DB is nil")
	}

	createdAt := p.now().UTC().Truncate(time.Microsecond)
	query := `
	INSERT INTO vehicles (name, vehicle_type, capacity, start_address, available, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id;
	`
	var id int64
	if err := p.DB.QueryRowContext(ctx, query,
		v.Name, v.Type, v.Capacity, v.StartAddress, v.Available, createdAt,
	).Scan(&id); err != nil {
		return fmt.Errorf("create vehicle: insert: %w", err)
	}

	v.ID = id
	v.CreatedAt = createdAt
	v.UpdatedAt = nil
	return nil
}

func (p *PostgresVehicleRepository) Get(ctx context.Context, id int64) (_ *domain.VehicleProfile, err error) {
	defer obs.Time(ctx, "vehicles.Get")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres vehicle repository: DB is nil")
	}

	v, err := scanVehicle(p.DB.QueryRowContext(ctx, selectVehicleColumns+` WHERE id = $1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle %d: %w", id, err)
	}
	return &v, nil
}

func (p *PostgresVehicleRepository) List(ctx context.Context, available *bool, limit int) (_ []domain.VehicleProfile, err error) {
	defer obs.Time(ctx, "vehicles.List")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres vehicle repository: DB is nil")
	}

	query := selectVehicleColumns + ` ORDER BY id LIMIT $1;`
	args := []any{normalizeLimit(limit)}
	if available != nil {
		query = selectVehicleColumns + ` WHERE available = $2 ORDER BY id LIMIT $1;`
		args = append(args, *available)
	}

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: query vehicles table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.VehicleProfile, 0, 16)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("list vehicles: scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vehicles: row iteration: %w", err)
	}
	return out, nil
}

func (p *PostgresVehicleRepository) Update(ctx context.Context, v *domain.VehicleProfile) (err error) {
	defer obs.Time(ctx, "vehicles.Update")(&err)

	if p.DB == nil {
		return errors.New("postgres vehicle repository: DB is nil")
	}

	updatedAt := p.now().UTC().Truncate(time.Microsecond)
	query := `
	UPDATE vehicles
	SET name = $2, vehicle_type = $3, capacity = $4, start_address = $5, available = $6, updated_at = $7
	WHERE id = $1
	RETURNING created_at;
	`
	var createdAt time.Time
	err = p.DB.QueryRowContext(ctx, query,
		v.ID, v.Name, v.Type, v.Capacity, v.StartAddress, v.Available, updatedAt,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrVehicleNotFound
	}
	if err != nil {
		return fmt.Errorf("update vehicle %d: %w", v.ID, err)
	}

	v.CreatedAt = createdAt
	v.UpdatedAt = &updatedAt
	return nil
}

func (p *PostgresVehicleRepository) Delete(ctx context.Context, id int64) (err error) {
	defer obs.Time(ctx, "vehicles.Delete")(&err)

	if p.DB == nil {
		return errors.New("postgres vehicle repository: DB is nil")
	}

	res, err := p.DB.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vehicle %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return domain.ErrVehicleNotFound
	}
	return nil
}
