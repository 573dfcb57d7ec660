package domain

import (
	"fmt"
	"time"
)

// DriverStatus represents the current availability of a driver.
type DriverStatus string

const (
	DriverStatusOffline   DriverStatus = "OFFLINE"
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusBusy      DriverStatus = "BUSY"
	DriverStatusEnRoute   DriverStatus = "EN_ROUTE"
)

// DriverStatuses lists every driver status in declaration order.
var DriverStatuses = []DriverStatus{
	DriverStatusOffline,
	DriverStatusAvailable,
	DriverStatusBusy,
	DriverStatusEnRoute,
}

// ParseDriverStatus converts a symbolic name into a DriverStatus.
func ParseDriverStatus(s string) (DriverStatus, error) {
	status := DriverStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown driver status %q", ErrInvalidArgument, s)
	}
	return status, nil
}

// Valid reports whether s is one of the four driver statuses.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusOffline, DriverStatusAvailable, DriverStatusBusy, DriverStatusEnRoute:
		return true
	}
	return false
}

// HasActiveRide reports whether the status implies the driver holds a ride.
func (s DriverStatus) HasActiveRide() bool {
	return s == DriverStatusBusy || s == DriverStatusEnRoute
}

// Position is a WGS84 coordinate pair. Lat and Lng are always set together.
type Position struct {
	Lat float64
	Lng float64
}

// Driver represents a registered vehicle operator.
type Driver struct {
	ID           string
	Name         string
	Phone        string
	LicensePlate string
	Status       DriverStatus

	// Location is nil until the first location report.
	Location       *Position
	Heading        *float64
	SpeedKmh       *float64
	AccuracyMeters *float64

	LastLocationUpdate time.Time
	CreatedAt          time.Time

	// Version is the optimistic-concurrency sequence owned by the store.
	Version int64
}

// directDriverTransitions is the adjacency table for transitions a caller
// may request explicitly. BUSY and EN_ROUTE are entered only through ride
// transitions.
var directDriverTransitions = map[DriverStatus][]DriverStatus{
	DriverStatusOffline:   {DriverStatusAvailable},
	DriverStatusAvailable: {DriverStatusOffline},
	DriverStatusBusy:      nil,
	DriverStatusEnRoute:   nil,
}

// CanTransition reports whether from -> to is allowed as a direct request.
func CanTransition(from, to DriverStatus) bool {
	for _, s := range directDriverTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invalidDriverTransition(from, to DriverStatus) error {
	return fmt.Errorf("%w: driver %s -> %s", ErrInvalidTransition, from, to)
}

// GoOnline moves an OFFLINE driver to AVAILABLE at the given position.
func (d *Driver) GoOnline(lat, lng float64, now time.Time) error {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return err
	}
	if d.Status != DriverStatusOffline {
		return invalidDriverTransition(d.Status, DriverStatusAvailable)
	}
	d.Location = &Position{Lat: lat, Lng: lng}
	d.LastLocationUpdate = now
	d.Status = DriverStatusAvailable
	return nil
}

// GoOffline moves an AVAILABLE driver to OFFLINE. A driver holding a ride
// must resolve it first.
func (d *Driver) GoOffline() error {
	if d.Status != DriverStatusAvailable {
		return invalidDriverTransition(d.Status, DriverStatusOffline)
	}
	d.Status = DriverStatusOffline
	return nil
}

// SetStatus applies an explicitly requested status change.
func (d *Driver) SetStatus(target DriverStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown driver status %q", ErrInvalidArgument, target)
	}
	switch target {
	case DriverStatusAvailable:
		if !CanTransition(d.Status, target) {
			return invalidDriverTransition(d.Status, target)
		}
		if d.Location == nil {
			return fmt.Errorf("%w: driver has no known location", ErrInvalidArgument)
		}
		d.Status = target
		return nil
	case DriverStatusOffline:
		return d.GoOffline()
	case DriverStatusBusy, DriverStatusEnRoute:
		return invalidDriverTransition(d.Status, target)
	}
	return invalidDriverTransition(d.Status, target)
}

// ApplyLocation records a telemetry report without touching the status.
func (d *Driver) ApplyLocation(u LocationUpdate, now time.Time) error {
	if err := ValidateCoordinates(u.Lat, u.Lng); err != nil {
		return err
	}
	d.Location = &Position{Lat: u.Lat, Lng: u.Lng}
	d.Heading = u.Heading
	d.SpeedKmh = u.SpeedKmh
	d.AccuracyMeters = u.AccuracyMeters
	d.LastLocationUpdate = now
	return nil
}

// AssignRide marks an AVAILABLE driver BUSY on ride acceptance.
func (d *Driver) AssignRide() error {
	if d.Status != DriverStatusAvailable {
		return fmt.Errorf("%w: driver %s is %s", ErrDriverUnavailable, d.ID, d.Status)
	}
	d.Status = DriverStatusBusy
	return nil
}

// BeginRide moves a BUSY driver to EN_ROUTE when the ride starts. An
// OFFLINE driver is left OFFLINE.
func (d *Driver) BeginRide() error {
	switch d.Status {
	case DriverStatusBusy:
		d.Status = DriverStatusEnRoute
		return nil
	case DriverStatusOffline:
		return nil
	case DriverStatusAvailable, DriverStatusEnRoute:
		return invalidDriverTransition(d.Status, DriverStatusEnRoute)
	}
	return invalidDriverTransition(d.Status, DriverStatusEnRoute)
}

// ReleaseRide returns the driver to AVAILABLE after the ride ends.
// Release never resurrects an OFFLINE driver.
func (d *Driver) ReleaseRide() {
	switch d.Status {
	case DriverStatusBusy, DriverStatusEnRoute:
		d.Status = DriverStatusAvailable
	case DriverStatusOffline, DriverStatusAvailable:
	}
}
