package service

import (
	"context"
	"fmt"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DispatchService coordinates transitions that touch a ride and its driver
// together. Each one commits both records in a single store transaction.
type DispatchService struct {
	core
	locks   redis.LockStoreInterface
	lockTTL time.Duration
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(deps Dependencies) *DispatchService {
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &DispatchService{
		core:    newCore(deps),
		locks:   deps.Locks,
		lockTTL: ttl,
	}
}

// lock takes the distributed ride lock, then the driver lock when driverID
// is known. Without a lock store it is a no-op. A Redis failure is logged
// and the transition continues, since the store transaction alone keeps
// the records consistent.
func (s *DispatchService) lock(ctx context.Context, rideID, driverID string) (func(), error) {
	noop := func() {}
	if s.locks == nil {
		return noop, nil
	}

	rideToken, ok, err := s.locks.AcquireRideLock(ctx, rideID, s.lockTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "ride lock unavailable", "ride_id", rideID, "error", err)
		return noop, nil
	}
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", rideID, ErrLockBusy)
	}

	releaseRide := func() {
		if err := s.locks.ReleaseRideLock(afterCommit(ctx), rideID, rideToken); err != nil {
			s.logger.WarnContext(ctx, "failed to release ride lock", "ride_id", rideID, "error", err)
		}
	}
	if driverID == "" {
		return releaseRide, nil
	}

	driverToken, ok, err := s.locks.AcquireDriverLock(ctx, driverID, s.lockTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "driver lock unavailable", "driver_id", driverID, "error", err)
		return releaseRide, nil
	}
	if !ok {
		releaseRide()
		return nil, fmt.Errorf("driver %s: %w", driverID, ErrLockBusy)
	}

	return func() {
		if err := s.locks.ReleaseDriverLock(afterCommit(ctx), driverID, driverToken); err != nil {
			s.logger.WarnContext(ctx, "failed to release driver lock", "driver_id", driverID, "error", err)
		}
		releaseRide()
	}, nil
}

// transition runs fn under the distributed locks and a store transaction,
// recording the attempt.
func (s *DispatchService) transition(ctx context.Context, name, rideID, driverID string, fn func(ctx context.Context, tx repository.Repositories) error) (err error) {
	started := time.Now()
	defer func() { s.observe("ride", name, started, err) }()

	release, err := s.lock(ctx, rideID, driverID)
	if err != nil {
		return err
	}
	defer release()

	return s.inTx(ctx, fn)
}

// saveIfChanged writes the driver only when its status moved, so a no-op
// release leaves the stored version untouched.
func saveIfChanged(ctx context.Context, tx repository.Repositories, d *domain.Driver, before domain.DriverStatus) error {
	if d.Status == before {
		return nil
	}
	return tx.Drivers().Save(ctx, d)
}

// Accept binds an AVAILABLE driver to a REQUESTED ride. The ride becomes
// ACCEPTED and the driver BUSY in one commit.
func (s *DispatchService) Accept(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var ride *domain.Ride
	var driver *domain.Driver
	err := s.transition(ctx, "accept", rideID, driverID, func(ctx context.Context, tx repository.Repositories) error {
		r, err := tx.Rides().GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		d, err := tx.Drivers().GetByID(ctx, driverID)
		if err != nil {
			return err
		}

		if err := r.Accept(driverID, s.now()); err != nil {
			return err
		}
		if err := d.AssignRide(); err != nil {
			return err
		}

		if err := tx.Rides().Save(ctx, r); err != nil {
			return err
		}
		if err := tx.Drivers().Save(ctx, d); err != nil {
			return err
		}
		ride, driver = r, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride accepted", "ride_id", ride.ID, "driver_id", driver.ID)

	sideCtx := afterCommit(ctx)
	s.publishRide(sideCtx, events.RideAccepted, ride, "", ride.AcceptedAt)
	s.publishAssignment(sideCtx, events.AssignmentAssigned, ride.ID, driver.ID, ride.AcceptedAt)
	s.syncDriver(sideCtx, driver)

	return ride, nil
}

// StartRide moves an ACCEPTED ride to IN_PROGRESS and its driver to
// EN_ROUTE. Only the assigned driver may start it.
func (s *DispatchService) StartRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var ride *domain.Ride
	var driver *domain.Driver
	err := s.transition(ctx, "start", rideID, driverID, func(ctx context.Context, tx repository.Repositories) error {
		r, err := tx.Rides().GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if err := r.Start(driverID, s.now()); err != nil {
			return err
		}

		d, err := tx.Drivers().GetByID(ctx, r.DriverID)
		if err != nil {
			return err
		}
		before := d.Status
		if err := d.BeginRide(); err != nil {
			return err
		}

		if err := tx.Rides().Save(ctx, r); err != nil {
			return err
		}
		if err := saveIfChanged(ctx, tx, d, before); err != nil {
			return err
		}
		ride, driver = r, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride started", "ride_id", ride.ID, "driver_id", driver.ID)

	sideCtx := afterCommit(ctx)
	s.publishRide(sideCtx, events.RideStarted, ride, "", ride.StartedAt)
	s.syncDriver(sideCtx, driver)

	return ride, nil
}

// CompleteRide finishes an IN_PROGRESS ride with the given fare and frees
// the driver. A driver who went OFFLINE stays OFFLINE.
func (s *DispatchService) CompleteRide(ctx context.Context, rideID, driverID string, fare float64) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var ride *domain.Ride
	var driver *domain.Driver
	err := s.transition(ctx, "complete", rideID, driverID, func(ctx context.Context, tx repository.Repositories) error {
		r, err := tx.Rides().GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if err := r.Complete(driverID, fare, s.now()); err != nil {
			return err
		}

		d, err := tx.Drivers().GetByID(ctx, r.DriverID)
		if err != nil {
			return err
		}
		before := d.Status
		d.ReleaseRide()

		if err := tx.Rides().Save(ctx, r); err != nil {
			return err
		}
		if err := saveIfChanged(ctx, tx, d, before); err != nil {
			return err
		}
		ride, driver = r, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride completed",
		"ride_id", ride.ID,
		"driver_id", driver.ID,
		"fare", fare,
	)

	sideCtx := afterCommit(ctx)
	s.publishRide(sideCtx, events.RideCompleted, ride, "", ride.CompletedAt)
	s.publishAssignment(sideCtx, events.AssignmentReleased, ride.ID, driver.ID, ride.CompletedAt)
	s.syncDriver(sideCtx, driver)

	return ride, nil
}

// CancelRide cancels a ride that has not reached a terminal status. When a
// driver was assigned it is freed in the same commit.
func (s *DispatchService) CancelRide(ctx context.Context, rideID, initiatedBy string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	var ride *domain.Ride
	var driver *domain.Driver
	err := s.transition(ctx, "cancel", rideID, "", func(ctx context.Context, tx repository.Repositories) error {
		r, err := tx.Rides().GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if err := r.Cancel(initiatedBy, s.now()); err != nil {
			return err
		}

		var d *domain.Driver
		if r.DriverID != "" {
			d, err = tx.Drivers().GetByID(ctx, r.DriverID)
			if err != nil {
				return err
			}
			before := d.Status
			d.ReleaseRide()
			if err := saveIfChanged(ctx, tx, d, before); err != nil {
				return err
			}
		}

		if err := tx.Rides().Save(ctx, r); err != nil {
			return err
		}
		ride, driver = r, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride cancelled",
		"ride_id", ride.ID,
		"driver_id", ride.DriverID,
		"initiated_by", ride.CancelledBy,
	)

	sideCtx := afterCommit(ctx)
	s.publishRide(sideCtx, events.RideCancelled, ride, ride.CancelledBy, ride.CancelledAt)
	if driver != nil {
		s.publishAssignment(sideCtx, events.AssignmentReleased, ride.ID, driver.ID, ride.CancelledAt)
		s.syncDriver(sideCtx, driver)
	}

	return ride, nil
}
