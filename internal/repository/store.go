package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Its Version is set to 1.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID. Inside a transaction the row stays
	// locked until commit or rollback.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetAll retrieves all drivers, filtered by status when status is non-empty.
	GetAll(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error)

	// Save writes driver if its Version matches the stored one and then
	// increments driver.Version. A mismatch returns ErrConflict.
	Save(ctx context.Context, driver *domain.Driver) error
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. Its Version is set to 1.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID. Inside a transaction the row stays
	// locked until commit or rollback.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByDriverID retrieves a driver's rides, newest first.
	GetByDriverID(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// GetByRiderID retrieves a rider's rides, newest first.
	GetByRiderID(ctx context.Context, riderID string) ([]*domain.Ride, error)

	// GetOpenByRiderID retrieves the rider's REQUESTED, ACCEPTED or
	// IN_PROGRESS ride. Returns nil if none exists.
	GetOpenByRiderID(ctx context.Context, riderID string) (*domain.Ride, error)

	// Save writes ride under the same version rule as DriverRepository.Save.
	Save(ctx context.Context, ride *domain.Ride) error
}

// Repositories groups the entity repositories of one store or transaction.
type Repositories interface {
	Drivers() DriverRepository
	Rides() RideRepository
}

// Store is the Entity Store. It exclusively owns driver and ride records.
type Store interface {
	Repositories

	// WithinTx runs fn against a transactional view. Writes made through
	// the view commit together when fn returns nil and are discarded
	// otherwise. Callers load the ride before the driver.
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
