package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/repository"
)

// RideService handles ride intake and ride reads. Transitions after
// intake belong to DispatchService.
type RideService struct {
	core
}

// NewRideService creates a new RideService.
func NewRideService(deps Dependencies) *RideService {
	return &RideService{core: newCore(deps)}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	RiderID   string
	PickupLat float64
	PickupLng float64

	// Destination is optional; both coordinates or neither.
	DestinationLat *float64
	DestinationLng *float64

	EstimatedDurationMinutes *int
}

// CreateRide creates a REQUESTED ride. A rider may hold one open ride at
// a time.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (ride *domain.Ride, err error) {
	started := time.Now()
	defer func() { s.observe("ride", "create", started, err) }()

	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	ride = &domain.Ride{
		ID:                       uuid.New().String(),
		RiderID:                  strings.TrimSpace(req.RiderID),
		Pickup:                   domain.Position{Lat: req.PickupLat, Lng: req.PickupLng},
		Status:                   domain.RideStatusRequested,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		CreatedAt:                s.now(),
	}
	if req.DestinationLat != nil {
		ride.Destination = &domain.Position{Lat: *req.DestinationLat, Lng: *req.DestinationLng}
	}

	err = s.inTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		open, err := tx.Rides().GetOpenByRiderID(ctx, ride.RiderID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: rider %s has ride %s", domain.ErrRiderHasActiveRide, ride.RiderID, open.ID)
		}
		return tx.Rides().Create(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride requested", "ride_id", ride.ID, "rider_id", ride.RiderID)

	s.publishRide(afterCommit(ctx), events.RideRequested, ride, "", ride.CreatedAt)
	return ride, nil
}

func (s *RideService) validateCreateRequest(req CreateRideRequest) error {
	if strings.TrimSpace(req.RiderID) == "" {
		return ErrInvalidRiderID
	}

	if err := domain.ValidateCoordinates(req.PickupLat, req.PickupLng); err != nil {
		return ErrInvalidPickupLocation
	}

	if (req.DestinationLat == nil) != (req.DestinationLng == nil) {
		return ErrInvalidDestinationLocation
	}
	if req.DestinationLat != nil {
		if err := domain.ValidateCoordinates(*req.DestinationLat, *req.DestinationLng); err != nil {
			return ErrInvalidDestinationLocation
		}
	}

	if req.EstimatedDurationMinutes != nil && *req.EstimatedDurationMinutes < 0 {
		return ErrInvalidDuration
	}

	return nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	var ride *domain.Ride
	err := s.read(ctx, func(ctx context.Context) (err error) {
		ride, err = s.store.Rides().GetByID(ctx, rideID)
		return err
	})
	return ride, err
}

// RidesForRider returns the rider's rides, newest first. An unknown rider
// simply has none.
func (s *RideService) RidesForRider(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	var rides []*domain.Ride
	err := s.read(ctx, func(ctx context.Context) (err error) {
		rides, err = s.store.Rides().GetByRiderID(ctx, riderID)
		return err
	})
	return rides, err
}
