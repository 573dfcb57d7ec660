package memory

import (
	"context"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// autoDrivers wraps each call in a single-operation transaction.
type autoDrivers struct{ s *Store }

func (a autoDrivers) Create(ctx context.Context, driver *domain.Driver) error {
	return a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		return tx.Drivers().Create(ctx, driver)
	})
}

func (a autoDrivers) GetByID(ctx context.Context, id string) (driver *domain.Driver, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		driver, err = tx.Drivers().GetByID(ctx, id)
		return err
	})
	return driver, err
}

func (a autoDrivers) GetAll(ctx context.Context, status domain.DriverStatus) (drivers []*domain.Driver, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		drivers, err = tx.Drivers().GetAll(ctx, status)
		return err
	})
	return drivers, err
}

func (a autoDrivers) Save(ctx context.Context, driver *domain.Driver) error {
	return a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		return tx.Drivers().Save(ctx, driver)
	})
}

type autoRides struct{ s *Store }

func (a autoRides) Create(ctx context.Context, ride *domain.Ride) error {
	return a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		return tx.Rides().Create(ctx, ride)
	})
}

func (a autoRides) GetByID(ctx context.Context, id string) (ride *domain.Ride, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		ride, err = tx.Rides().GetByID(ctx, id)
		return err
	})
	return ride, err
}

func (a autoRides) GetByDriverID(ctx context.Context, driverID string) (rides []*domain.Ride, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		rides, err = tx.Rides().GetByDriverID(ctx, driverID)
		return err
	})
	return rides, err
}

func (a autoRides) GetByRiderID(ctx context.Context, riderID string) (rides []*domain.Ride, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		rides, err = tx.Rides().GetByRiderID(ctx, riderID)
		return err
	})
	return rides, err
}

func (a autoRides) GetOpenByRiderID(ctx context.Context, riderID string) (ride *domain.Ride, err error) {
	err = a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		ride, err = tx.Rides().GetOpenByRiderID(ctx, riderID)
		return err
	})
	return ride, err
}

func (a autoRides) Save(ctx context.Context, ride *domain.Ride) error {
	return a.s.WithinTx(ctx, func(tx repository.Repositories) error {
		return tx.Rides().Save(ctx, ride)
	})
}
