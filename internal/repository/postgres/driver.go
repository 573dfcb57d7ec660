package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const driverColumns = `id, name, COALESCE(phone, ''), COALESCE(license_plate, ''), status,
	current_lat, current_lng, heading, speed_kmh, accuracy_meters,
	last_location_update, created_at, version`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q         Querier
	forUpdate bool
	versions  *versionLog
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
// Reads by id lock the row until the transaction ends.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx, forUpdate: true}
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng, heading, speed, accuracy sql.NullFloat64
	var lastUpdate sql.NullTime

	err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.LicensePlate,
		&driver.Status,
		&lat,
		&lng,
		&heading,
		&speed,
		&accuracy,
		&lastUpdate,
		&driver.CreatedAt,
		&driver.Version,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		driver.Location = &domain.Position{Lat: lat.Float64, Lng: lng.Float64}
	}
	driver.Heading = floatPtr(heading)
	driver.SpeedKmh = floatPtr(speed)
	driver.AccuracyMeters = floatPtr(accuracy)
	if lastUpdate.Valid {
		driver.LastLocationUpdate = lastUpdate.Time
	}

	return &driver, nil
}

func locationArgs(driver *domain.Driver) (sql.NullFloat64, sql.NullFloat64) {
	if driver.Location == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: driver.Location.Lat, Valid: true},
		sql.NullFloat64{Float64: driver.Location.Lng, Valid: true}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, license_plate, status, current_lat, current_lng,
			heading, speed_kmh, accuracy_meters, last_location_update, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
	`

	lat, lng := locationArgs(driver)
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.Name,
		nullString(driver.Phone),
		nullString(driver.LicensePlate),
		driver.Status,
		lat,
		lng,
		nullFloat(driver.Heading),
		nullFloat(driver.SpeedKmh),
		nullFloat(driver.AccuracyMeters),
		nullTime(driver.LastLocationUpdate),
		driver.CreatedAt,
	)
	if err != nil {
		return mapError(ctx, err)
	}

	r.versions.set(&driver.Version, 1)
	return nil
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("driver %s: %w", id, repository.ErrNotFound)
		}
		return nil, mapError(ctx, err)
	}

	return driver, nil
}

// GetAll retrieves all drivers, optionally filtered by status.
func (r *DriverRepository) GetAll(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE ($1 = '' OR status = $1) ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		drivers = append(drivers, driver)
	}
	return drivers, mapError(ctx, rows.Err())
}

// Save writes the driver when its version matches the stored row.
func (r *DriverRepository) Save(ctx context.Context, driver *domain.Driver) error {
	query := `
		UPDATE drivers
		SET name = $1, phone = $2, license_plate = $3, status = $4, current_lat = $5, current_lng = $6,
			heading = $7, speed_kmh = $8, accuracy_meters = $9, last_location_update = $10,
			version = version + 1
		WHERE id = $11 AND version = $12
	`

	lat, lng := locationArgs(driver)
	result, err := r.q.ExecContext(ctx, query,
		driver.Name,
		nullString(driver.Phone),
		nullString(driver.LicensePlate),
		driver.Status,
		lat,
		lng,
		nullFloat(driver.Heading),
		nullFloat(driver.SpeedKmh),
		nullFloat(driver.AccuracyMeters),
		nullTime(driver.LastLocationUpdate),
		driver.ID,
		driver.Version,
	)
	if err != nil {
		return mapError(ctx, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(ctx, err)
	}

	if rowsAffected == 0 {
		return r.missOrConflict(ctx, driver)
	}

	r.versions.set(&driver.Version, driver.Version+1)
	return nil
}

// missOrConflict tells an unknown id apart from a stale version.
func (r *DriverRepository) missOrConflict(ctx context.Context, driver *domain.Driver) error {
	var stored int64
	err := r.q.QueryRowContext(ctx, `SELECT version FROM drivers WHERE id = $1`, driver.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("driver %s: %w", driver.ID, repository.ErrNotFound)
	}
	if err != nil {
		return mapError(ctx, err)
	}
	return fmt.Errorf("%w: driver %s version %d, stored %d", repository.ErrConflict, driver.ID, driver.Version, stored)
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
