package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
)

// PostgresDriverRepository persists drivers in the drivers table.
type PostgresDriverRepository struct {
	db *sql.DB
}

// NewPostgresDriverRepository creates a Postgres-backed driver repository.
func NewPostgresDriverRepository(db *sql.DB) *PostgresDriverRepository {
	return &PostgresDriverRepository{db: db}
}

const driverColumns = "id, name, car_info, phone, status, station, last_lat, last_lon, queued_at, updated_at"

func (r *PostgresDriverRepository) Get(ctx context.Context, id int64) (*driver.Driver, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE id = $1
	`, id)

	d, err := scanDriver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driver.ErrDriverNotFound
	}
	return d, err
}

func (r *PostgresDriverRepository) Save(ctx context.Context, d *driver.Driver) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drivers (id, name, car_info, phone, status, station, last_lat, last_lon, queued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			car_info = EXCLUDED.car_info,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			station = EXCLUDED.station,
			last_lat = EXCLUDED.last_lat,
			last_lon = EXCLUDED.last_lon,
			queued_at = EXCLUDED.queued_at,
			updated_at = EXCLUDED.updated_at
	`, d.ID, d.Name, d.CarInfo, d.Phone, d.Status, d.Station, d.LastLat, d.LastLon, d.QueuedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

func (r *PostgresDriverRepository) QueuedAtStation(ctx context.Context, stationName string) ([]*driver.Driver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE status = $1 AND station = $2
		ORDER BY queued_at ASC, id ASC
	`, driver.StatusQueued, stationName)
	if err != nil {
		return nil, fmt.Errorf("failed to query station queue: %w", err)
	}
	defer rows.Close()

	return collectDrivers(rows)
}

func (r *PostgresDriverRepository) Queued(ctx context.Context) ([]*driver.Driver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE status = $1
		ORDER BY queued_at ASC, id ASC
	`, driver.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued drivers: %w", err)
	}
	defer rows.Close()

	return collectDrivers(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDriver(row rowScanner) (*driver.Driver, error) {
	var d driver.Driver
	var station sql.NullString
	var lat, lon sql.NullFloat64
	var queuedAt sql.NullTime

	if err := row.Scan(&d.ID, &d.Name, &d.CarInfo, &d.Phone, &d.Status,
		&station, &lat, &lon, &queuedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	if station.Valid {
		d.Station = &station.String
	}
	if lat.Valid {
		d.LastLat = &lat.Float64
	}
	if lon.Valid {
		d.LastLon = &lon.Float64
	}
	if queuedAt.Valid {
		d.QueuedAt = &queuedAt.Time
	}
	return &d, nil
}

func collectDrivers(rows *sql.Rows) ([]*driver.Driver, error) {
	var out []*driver.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
