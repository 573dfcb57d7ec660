package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

var validate = validator.New()

// Nearby search defaults used when the caller passes no bound.
const (
	DefaultNearbyRadiusKm = 5.0
	DefaultNearbyLimit    = 20
	MaxNearbyLimit        = 100
)

// DriverService handles driver registration, availability and location.
type DriverService struct {
	core
	nearbyRadiusKm float64
	nearbyLimit    int
}

// NewDriverService creates a new DriverService. Zero nearby bounds fall
// back to the package defaults.
func NewDriverService(deps Dependencies, nearbyRadiusKm float64, nearbyLimit int) *DriverService {
	if nearbyRadiusKm <= 0 {
		nearbyRadiusKm = DefaultNearbyRadiusKm
	}
	if nearbyLimit <= 0 {
		nearbyLimit = DefaultNearbyLimit
	}
	return &DriverService{
		core:           newCore(deps),
		nearbyRadiusKm: nearbyRadiusKm,
		nearbyLimit:    nearbyLimit,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name         string
	Phone        string
	LicensePlate string
}

// RegisterDriver creates an OFFLINE driver.
func (s *DriverService) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidDriverName
	}

	driver := &domain.Driver{
		ID:           uuid.New().String(),
		Name:         name,
		Phone:        strings.TrimSpace(req.Phone),
		LicensePlate: strings.TrimSpace(req.LicensePlate),
		Status:       domain.DriverStatusOffline,
		CreatedAt:    s.now(),
	}

	err := s.read(ctx, func(ctx context.Context) error {
		return s.store.Drivers().Create(ctx, driver)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver registered", "driver_id", driver.ID)
	return driver, nil
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var driver *domain.Driver
	err := s.read(ctx, func(ctx context.Context) (err error) {
		driver, err = s.store.Drivers().GetByID(ctx, driverID)
		return err
	})
	return driver, err
}

// ListDrivers returns all drivers, filtered by status when one is given.
func (s *DriverService) ListDrivers(ctx context.Context, status string) ([]*domain.Driver, error) {
	var filter domain.DriverStatus
	if status != "" {
		parsed, err := domain.ParseDriverStatus(strings.ToUpper(status))
		if err != nil {
			return nil, err
		}
		filter = parsed
	}

	var drivers []*domain.Driver
	err := s.read(ctx, func(ctx context.Context) (err error) {
		drivers, err = s.store.Drivers().GetAll(ctx, filter)
		return err
	})
	return drivers, err
}

// RidesForDriver returns the driver's rides, newest first.
func (s *DriverService) RidesForDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var rides []*domain.Ride
	err := s.read(ctx, func(ctx context.Context) error {
		if _, err := s.store.Drivers().GetByID(ctx, driverID); err != nil {
			return err
		}
		var err error
		rides, err = s.store.Rides().GetByDriverID(ctx, driverID)
		return err
	})
	return rides, err
}

// mutate loads one driver in a transaction, applies fn and saves it.
func (s *DriverService) mutate(ctx context.Context, transition, driverID string, fn func(d *domain.Driver) error) (driver *domain.Driver, err error) {
	started := time.Now()
	defer func() { s.observe("driver", transition, started, err) }()

	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	err = s.inTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		d, err := tx.Drivers().GetByID(ctx, driverID)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		if err := tx.Drivers().Save(ctx, d); err != nil {
			return err
		}
		driver = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// GoOnline moves an OFFLINE driver to AVAILABLE at the given position.
func (s *DriverService) GoOnline(ctx context.Context, driverID string, lat, lng float64) (*domain.Driver, error) {
	driver, err := s.mutate(ctx, "go_online", driverID, func(d *domain.Driver) error {
		return d.GoOnline(lat, lng, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver online", "driver_id", driver.ID)

	sideCtx := afterCommit(ctx)
	s.syncDriver(sideCtx, driver)
	s.publishLocation(sideCtx, driver)
	return driver, nil
}

// GoOffline moves an AVAILABLE driver to OFFLINE. A driver holding a ride
// is rejected with ErrInvalidTransition.
func (s *DriverService) GoOffline(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.mutate(ctx, "go_offline", driverID, func(d *domain.Driver) error {
		return d.GoOffline()
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver offline", "driver_id", driver.ID)

	s.syncDriver(afterCommit(ctx), driver)
	return driver, nil
}

// SetStatus applies an explicitly requested status by name.
func (s *DriverService) SetStatus(ctx context.Context, driverID, status string) (*domain.Driver, error) {
	target, err := domain.ParseDriverStatus(strings.ToUpper(status))
	if err != nil {
		return nil, err
	}

	driver, err := s.mutate(ctx, "set_status", driverID, func(d *domain.Driver) error {
		return d.SetStatus(target)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver status set", "driver_id", driver.ID, "status", driver.Status)

	s.syncDriver(afterCommit(ctx), driver)
	return driver, nil
}

// UpdateLocation records a location report. The driver's status is left
// unchanged and the latest report wins.
func (s *DriverService) UpdateLocation(ctx context.Context, update domain.LocationUpdate) (*domain.Driver, error) {
	if update.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if err := validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	driver, err := s.mutate(ctx, "update_location", update.DriverID, func(d *domain.Driver) error {
		return d.ApplyLocation(update, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "driver location updated", "driver_id", driver.ID)

	sideCtx := afterCommit(ctx)
	s.syncDriver(sideCtx, driver)
	s.publishLocation(sideCtx, driver)
	return driver, nil
}

// NearbyDriver is an AVAILABLE driver found around a point.
type NearbyDriver struct {
	DriverID   string
	Name       string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// NearbyDrivers lists AVAILABLE drivers around a point, nearest first.
// The geo index proposes candidates; the cached snapshot, or the store on
// a cache miss, decides availability. Without a geo index the result is
// empty.
func (s *DriverService) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error) {
	if err := domain.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		radiusKm = s.nearbyRadiusKm
	}
	if limit <= 0 {
		limit = s.nearbyLimit
	}
	if limit > MaxNearbyLimit {
		limit = MaxNearbyLimit
	}

	if s.locations == nil {
		return []NearbyDriver{}, nil
	}

	candidates, err := s.locations.FindNearbyDrivers(ctx, lat, lng, radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby drivers: %w", err)
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DriverID
	}
	statuses, err := s.availability(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]NearbyDriver, 0, len(candidates))
	for _, c := range candidates {
		snap, ok := statuses[c.DriverID]
		if !ok || snap.Status != string(domain.DriverStatusAvailable) {
			continue
		}
		result = append(result, NearbyDriver{
			DriverID:   c.DriverID,
			Name:       snap.Name,
			Lat:        c.Lat,
			Lng:        c.Lng,
			DistanceKm: c.DistanceKm,
		})
	}
	return result, nil
}

// availability resolves driver snapshots from the cache, falling back to
// the store for misses and refreshing the cache with what it finds. Ids
// unknown to the store are dropped.
func (s *DriverService) availability(ctx context.Context, ids []string) (map[string]*redis.CachedDriver, error) {
	found := make(map[string]*redis.CachedDriver, len(ids))
	missing := ids

	if s.cache != nil && len(ids) > 0 {
		hits, misses, err := s.cache.GetDriversBatch(ctx, ids)
		if err != nil {
			s.logger.WarnContext(ctx, "driver cache read failed", "error", err)
		} else {
			found = hits
			missing = misses
		}
	}

	for _, id := range missing {
		var d *domain.Driver
		err := s.read(ctx, func(ctx context.Context) (err error) {
			d, err = s.store.Drivers().GetByID(ctx, id)
			return err
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		snap := snapshot(d, s.now())
		found[id] = snap
		if s.cache != nil {
			if err := s.cache.SetDriver(ctx, snap); err != nil {
				s.sideEffectFailed(ctx, "driver_cache", err, "driver_id", id)
			}
		}
	}
	return found, nil
}
