// Package events publishes dispatch state changes to downstream consumers.
package events

import (
	"context"
	"time"
)

// Ride event types.
const (
	RideRequested = "RIDE_REQUESTED"
	RideAccepted  = "RIDE_ACCEPTED"
	RideStarted   = "RIDE_STARTED"
	RideCompleted = "RIDE_COMPLETED"
	RideCancelled = "RIDE_CANCELLED"
)

// Ride assignment event types.
const (
	AssignmentAssigned = "ASSIGNED"
	AssignmentReleased = "RELEASED"
)

// RideEvent describes a ride lifecycle transition.
type RideEvent struct {
	EventType   string    `json:"eventType"`
	RideID      string    `json:"rideId"`
	RiderID     string    `json:"riderId"`
	DriverID    string    `json:"driverId,omitempty"`
	PickupLat   float64   `json:"pickupLat"`
	PickupLng   float64   `json:"pickupLng"`
	FareAmount  *float64  `json:"fareAmount,omitempty"`
	InitiatedBy string    `json:"initiatedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// EstimatedDurationMinutes is the rider-side estimate, if any.
	EstimatedDurationMinutes *int `json:"estimatedDurationMinutes,omitempty"`
	// ActualDurationMinutes is set on RIDE_COMPLETED only.
	ActualDurationMinutes *int `json:"actualDurationMinutes,omitempty"`
}

// DriverLocationEvent describes an accepted location report.
type DriverLocationEvent struct {
	DriverID       string    `json:"driverId"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Heading        *float64  `json:"heading,omitempty"`
	SpeedKmh       *float64  `json:"speedKmh,omitempty"`
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// RideAssignmentEvent describes a driver being bound to or released from a ride.
type RideAssignmentEvent struct {
	RideID    string    `json:"rideId"`
	DriverID  string    `json:"driverId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishRideEvent(ctx context.Context, event RideEvent) error
	PublishDriverLocation(ctx context.Context, event DriverLocationEvent) error
	PublishRideAssignment(ctx context.Context, event RideAssignmentEvent) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishRideEvent(context.Context, RideEvent) error                { return nil }
func (NopPublisher) PublishDriverLocation(context.Context, DriverLocationEvent) error { return nil }
func (NopPublisher) PublishRideAssignment(context.Context, RideAssignmentEvent) error { return nil }
func (NopPublisher) Close() error                                                     { return nil }

var _ Publisher = NopPublisher{}
