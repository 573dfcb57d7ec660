package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested  RideStatus = "REQUESTED"
	RideStatusAccepted   RideStatus = "ACCEPTED"
	RideStatusInProgress RideStatus = "IN_PROGRESS"
	RideStatusCompleted  RideStatus = "COMPLETED"
	RideStatusCancelled  RideStatus = "CANCELLED"
)

// ParseRideStatus converts a symbolic name into a RideStatus.
func ParseRideStatus(s string) (RideStatus, error) {
	switch status := RideStatus(s); status {
	case RideStatusRequested, RideStatusAccepted, RideStatusInProgress, RideStatusCompleted, RideStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown ride status %q", ErrInvalidArgument, s)
}

// Terminal reports whether no transition may leave s.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Active reports whether a ride in s is bound to a driver.
func (s RideStatus) Active() bool {
	return s == RideStatusAccepted || s == RideStatusInProgress
}

// Open reports whether a ride in s still counts against its rider.
func (s RideStatus) Open() bool {
	return s == RideStatusRequested || s.Active()
}

// Ride represents a single trip request from creation to terminal resolution.
type Ride struct {
	ID       string
	RiderID  string
	DriverID string // empty until accepted

	Pickup      Position
	Destination *Position

	Status                   RideStatus
	FareAmount               *float64
	EstimatedDurationMinutes *int

	CreatedAt   time.Time
	AcceptedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
	CancelledBy string

	Version int64
}

func invalidRideTransition(r *Ride, to RideStatus) error {
	return fmt.Errorf("%w: ride %s %s -> %s", ErrInvalidTransition, r.ID, r.Status, to)
}

// lastEvent returns the latest lifecycle timestamp already recorded.
func (r *Ride) lastEvent() time.Time {
	last := r.CreatedAt
	for _, t := range []time.Time{r.AcceptedAt, r.StartedAt} {
		if t.After(last) {
			last = t
		}
	}
	return last
}

// stamp returns now, clamped so lifecycle timestamps never go backwards.
func (r *Ride) stamp(now time.Time) time.Time {
	if last := r.lastEvent(); now.Before(last) {
		return last
	}
	return now
}

// Accept binds a REQUESTED ride to driverID. Driver availability is
// checked by the dispatcher, which sees both records.
func (r *Ride) Accept(driverID string, now time.Time) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver id is required", ErrInvalidArgument)
	}
	if r.Status != RideStatusRequested {
		return invalidRideTransition(r, RideStatusAccepted)
	}
	r.DriverID = driverID
	r.Status = RideStatusAccepted
	r.AcceptedAt = r.stamp(now)
	return nil
}

func (r *Ride) checkOwner(driverID string) error {
	if r.DriverID != driverID {
		return fmt.Errorf("%w: driver %s is not assigned to ride %s", ErrForbidden, driverID, r.ID)
	}
	return nil
}

// Start moves an ACCEPTED ride to IN_PROGRESS. A driver who is not assigned
// gets ErrForbidden whatever the ride's status.
func (r *Ride) Start(driverID string, now time.Time) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver id is required", ErrInvalidArgument)
	}
	if err := r.checkOwner(driverID); err != nil {
		return err
	}
	if r.Status != RideStatusAccepted {
		return invalidRideTransition(r, RideStatusInProgress)
	}
	r.Status = RideStatusInProgress
	r.StartedAt = r.stamp(now)
	return nil
}

// MaxFareAmount is the largest fare a ride can record.
const MaxFareAmount = 99_999_999.99

// ValidateFare accepts a finite, non-negative amount in whole cents no
// larger than MaxFareAmount.
func ValidateFare(fare float64) error {
	switch {
	case math.IsNaN(fare) || math.IsInf(fare, 0):
		return fmt.Errorf("%w: fare amount must be a finite number", ErrInvalidArgument)
	case fare < 0:
		return fmt.Errorf("%w: fare amount %v is negative", ErrInvalidArgument, fare)
	case fare > MaxFareAmount:
		return fmt.Errorf("%w: fare amount %v exceeds %.2f", ErrInvalidArgument, fare, MaxFareAmount)
	}
	cents := fare * 100
	if math.Abs(cents-math.Round(cents)) > 1e-3 {
		return fmt.Errorf("%w: fare amount %v has more than two decimal places", ErrInvalidArgument, fare)
	}
	return nil
}

// Complete moves an IN_PROGRESS ride to COMPLETED with the given fare.
func (r *Ride) Complete(driverID string, fare float64, now time.Time) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver id is required", ErrInvalidArgument)
	}
	if err := ValidateFare(fare); err != nil {
		return err
	}
	if err := r.checkOwner(driverID); err != nil {
		return err
	}
	if r.Status != RideStatusInProgress {
		return invalidRideTransition(r, RideStatusCompleted)
	}
	r.Status = RideStatusCompleted
	r.FareAmount = &fare
	r.CompletedAt = r.stamp(now)
	return nil
}

// ActualDurationMinutes returns the whole minutes between start and
// completion, or nil until the ride has completed.
func (r *Ride) ActualDurationMinutes() *int {
	if r.Status != RideStatusCompleted || r.StartedAt.IsZero() {
		return nil
	}
	minutes := int(r.CompletedAt.Sub(r.StartedAt).Minutes())
	return &minutes
}

// Cancel moves a non-terminal ride to CANCELLED. initiatedBy identifies
// the rider or driver who asked, for audit.
func (r *Ride) Cancel(initiatedBy string, now time.Time) error {
	initiatedBy = strings.TrimSpace(initiatedBy)
	if initiatedBy == "" {
		return fmt.Errorf("%w: initiatedBy is required", ErrInvalidArgument)
	}
	if r.Status.Terminal() {
		return invalidRideTransition(r, RideStatusCancelled)
	}
	r.Status = RideStatusCancelled
	r.CancelledBy = initiatedBy
	r.CancelledAt = r.stamp(now)
	return nil
}
