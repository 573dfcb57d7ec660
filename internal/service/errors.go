package service

import (
	"fmt"

	"dispatch/internal/domain"
)

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = fmt.Errorf("%w: rider id is required", domain.ErrInvalidArgument)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = fmt.Errorf("%w: ride id is required", domain.ErrInvalidArgument)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: driver id is required", domain.ErrInvalidArgument)

	// ErrInvalidDriverName is returned when a driver is registered without a name.
	ErrInvalidDriverName = fmt.Errorf("%w: driver name is required", domain.ErrInvalidArgument)

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = fmt.Errorf("%w: invalid pickup location", domain.ErrInvalidArgument)

	// ErrInvalidDestinationLocation is returned when destination coordinates are invalid.
	ErrInvalidDestinationLocation = fmt.Errorf("%w: invalid destination location", domain.ErrInvalidArgument)

	// ErrInvalidDuration is returned for a negative duration estimate.
	ErrInvalidDuration = fmt.Errorf("%w: estimated duration must not be negative", domain.ErrInvalidArgument)

	// ErrLockBusy is returned when another dispatcher holds the ride or driver lock.
	ErrLockBusy = fmt.Errorf("%w: record is locked by a concurrent operation", domain.ErrConflict)
)
