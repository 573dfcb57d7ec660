package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const rideColumns = `id, rider_id, COALESCE(driver_id, ''), pickup_lat, pickup_lng,
	destination_lat, destination_lng, status, fare_amount, estimated_duration_minutes,
	created_at, accepted_at, started_at, completed_at, cancelled_at,
	COALESCE(cancelled_by, ''), version`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q         Querier
	forUpdate bool
	versions  *versionLog
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
// Reads by id lock the row until the transaction ends.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx, forUpdate: true}
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var destLat, destLng, fare sql.NullFloat64
	var duration sql.NullInt64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.DriverID,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&destLat,
		&destLng,
		&ride.Status,
		&fare,
		&duration,
		&ride.CreatedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&ride.CancelledBy,
		&ride.Version,
	)
	if err != nil {
		return nil, err
	}

	if destLat.Valid && destLng.Valid {
		ride.Destination = &domain.Position{Lat: destLat.Float64, Lng: destLng.Float64}
	}
	ride.FareAmount = floatPtr(fare)
	if duration.Valid {
		minutes := int(duration.Int64)
		ride.EstimatedDurationMinutes = &minutes
	}
	if acceptedAt.Valid {
		ride.AcceptedAt = acceptedAt.Time
	}
	if startedAt.Valid {
		ride.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}

	return &ride, nil
}

func destinationArgs(ride *domain.Ride) (sql.NullFloat64, sql.NullFloat64) {
	if ride.Destination == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: ride.Destination.Lat, Valid: true},
		sql.NullFloat64{Float64: ride.Destination.Lng, Valid: true}
}

func durationArg(ride *domain.Ride) sql.NullInt64 {
	if ride.EstimatedDurationMinutes == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*ride.EstimatedDurationMinutes), Valid: true}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, driver_id, pickup_lat, pickup_lng, destination_lat, destination_lng,
			status, fare_amount, estimated_duration_minutes, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`

	destLat, destLng := destinationArgs(ride)
	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		nullString(ride.DriverID),
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		destLat,
		destLng,
		ride.Status,
		nullFloat(ride.FareAmount),
		durationArg(ride),
		ride.CreatedAt,
	)
	if err != nil {
		return mapError(ctx, err)
	}

	r.versions.set(&ride.Version, 1)
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ride %s: %w", id, repository.ErrNotFound)
		}
		return nil, mapError(ctx, err)
	}

	return ride, nil
}

func (r *RideRepository) list(ctx context.Context, where string, arg string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE ` + where + ` ORDER BY created_at DESC, id LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		rides = append(rides, ride)
	}
	return rides, mapError(ctx, rows.Err())
}

// GetByDriverID retrieves a driver's rides, newest first.
func (r *RideRepository) GetByDriverID(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return r.list(ctx, `driver_id = $1`, driverID)
}

// GetByRiderID retrieves a rider's rides, newest first.
func (r *RideRepository) GetByRiderID(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	return r.list(ctx, `rider_id = $1`, riderID)
}

// GetOpenByRiderID retrieves the rider's open ride.
// Returns nil if no open ride exists.
func (r *RideRepository) GetOpenByRiderID(ctx context.Context, riderID string) (*domain.Ride, error) {
	rides, err := r.list(ctx, `rider_id = $1 AND status IN ('REQUESTED', 'ACCEPTED', 'IN_PROGRESS')`, riderID)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, nil
	}
	return rides[0], nil
}

// Save writes the ride when its version matches the stored row.
func (r *RideRepository) Save(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET driver_id = $1, destination_lat = $2, destination_lng = $3, status = $4, fare_amount = $5,
			estimated_duration_minutes = $6, accepted_at = $7, started_at = $8, completed_at = $9,
			cancelled_at = $10, cancelled_by = $11, version = version + 1
		WHERE id = $12 AND version = $13
	`

	destLat, destLng := destinationArgs(ride)
	result, err := r.q.ExecContext(ctx, query,
		nullString(ride.DriverID),
		destLat,
		destLng,
		ride.Status,
		nullFloat(ride.FareAmount),
		durationArg(ride),
		nullTime(ride.AcceptedAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		nullString(ride.CancelledBy),
		ride.ID,
		ride.Version,
	)
	if err != nil {
		return mapError(ctx, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(ctx, err)
	}

	if rowsAffected == 0 {
		var stored int64
		err := r.q.QueryRowContext(ctx, `SELECT version FROM rides WHERE id = $1`, ride.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ride %s: %w", ride.ID, repository.ErrNotFound)
		}
		if err != nil {
			return mapError(ctx, err)
		}
		return fmt.Errorf("%w: ride %s version %d, stored %d", repository.ErrConflict, ride.ID, ride.Version, stored)
	}

	r.versions.set(&ride.Version, ride.Version+1)
	return nil
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
