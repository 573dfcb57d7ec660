package service

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/observability"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// Dependencies holds the collaborators shared by the services. Only Store
// is required; nil Redis stores disable the matching side effect.
type Dependencies struct {
	Store     repository.Store
	Publisher events.Publisher
	Locations redis.LocationStoreInterface
	Cache     redis.DriverCacheInterface
	Locks     redis.LockStoreInterface
	Logger    *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// StoreTimeout bounds each store access. Zero means unbounded.
	StoreTimeout time.Duration

	// LockTTL is the expiry of distributed ride and driver locks.
	LockTTL time.Duration
}

// core carries the plumbing every service needs: bounded store access,
// the clock, and post-commit side effects.
type core struct {
	store        repository.Store
	publisher    events.Publisher
	locations    redis.LocationStoreInterface
	cache        redis.DriverCacheInterface
	logger       *slog.Logger
	clock        func() time.Time
	storeTimeout time.Duration
}

func newCore(deps Dependencies) core {
	c := core{
		store:        deps.Store,
		publisher:    deps.Publisher,
		locations:    deps.Locations,
		cache:        deps.Cache,
		logger:       deps.Logger,
		clock:        deps.Clock,
		storeTimeout: deps.StoreTimeout,
	}
	if c.publisher == nil {
		c.publisher = events.NopPublisher{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

func (c *core) now() time.Time {
	return c.clock().UTC()
}

func (c *core) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.storeTimeout)
}

// inTx runs fn in a store transaction bounded by the store timeout.
func (c *core) inTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	err := c.store.WithinTx(ctx, func(tx repository.Repositories) error {
		return fn(ctx, tx)
	})
	return repository.ContextError(ctx, err)
}

// read runs a single bounded read against the store.
func (c *core) read(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	return repository.ContextError(ctx, fn(ctx))
}

// observe records the outcome of a transition attempt.
func (c *core) observe(entity, transition string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.Code(err)
	}
	observability.Transitions.WithLabelValues(entity, transition, outcome).Inc()
	observability.TransitionLatency.WithLabelValues(entity, transition).Observe(time.Since(started).Seconds())
}

func (c *core) sideEffectFailed(ctx context.Context, kind string, err error, attrs ...any) {
	observability.SideEffectFailures.WithLabelValues(kind).Inc()
	c.logger.WarnContext(ctx, "post-commit side effect failed",
		append([]any{"kind", kind, "error", err}, attrs...)...)
}

// afterCommit detaches side effects from the caller's cancellation so a
// client hanging up cannot interrupt them halfway.
func afterCommit(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// syncDriver refreshes the geo index and the snapshot cache. Both are read
// models; the store stays authoritative.
func (c *core) syncDriver(ctx context.Context, d *domain.Driver) {
	if c.locations != nil {
		var err error
		if d.Status == domain.DriverStatusOffline || d.Location == nil {
			err = c.locations.RemoveLocation(ctx, d.ID)
		} else {
			err = c.locations.UpdateLocation(ctx, d.ID, d.Location.Lat, d.Location.Lng)
		}
		if err != nil {
			c.sideEffectFailed(ctx, "geo_index", err, "driver_id", d.ID)
		}
	}

	if c.cache != nil {
		if err := c.cache.SetDriver(ctx, snapshot(d, c.now())); err != nil {
			c.sideEffectFailed(ctx, "driver_cache", err, "driver_id", d.ID)
			// A stale snapshot must not outlive a failed refresh.
			if err := c.cache.InvalidateDriver(ctx, d.ID); err != nil {
				c.sideEffectFailed(ctx, "driver_cache", err, "driver_id", d.ID)
			}
		}
	}
}

func snapshot(d *domain.Driver, now time.Time) *redis.CachedDriver {
	cached := &redis.CachedDriver{
		ID:       d.ID,
		Name:     d.Name,
		Status:   string(d.Status),
		Version:  d.Version,
		CachedAt: now.Unix(),
	}
	if d.Location != nil {
		cached.Lat = d.Location.Lat
		cached.Lng = d.Location.Lng
		cached.Located = true
	}
	return cached
}

func (c *core) publishRide(ctx context.Context, eventType string, ride *domain.Ride, initiatedBy string, at time.Time) {
	event := events.RideEvent{
		EventType:   eventType,
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		DriverID:    ride.DriverID,
		PickupLat:   ride.Pickup.Lat,
		PickupLng:   ride.Pickup.Lng,
		FareAmount:  ride.FareAmount,
		InitiatedBy: initiatedBy,
		Timestamp:   at,

		EstimatedDurationMinutes: ride.EstimatedDurationMinutes,
		ActualDurationMinutes:    ride.ActualDurationMinutes(),
	}
	if err := c.publisher.PublishRideEvent(ctx, event); err != nil {
		c.sideEffectFailed(ctx, "publish_ride_event", err, "ride_id", ride.ID, "event_type", eventType)
	}
}

func (c *core) publishAssignment(ctx context.Context, eventType, rideID, driverID string, at time.Time) {
	event := events.RideAssignmentEvent{
		RideID:    rideID,
		DriverID:  driverID,
		EventType: eventType,
		Timestamp: at,
	}
	if err := c.publisher.PublishRideAssignment(ctx, event); err != nil {
		c.sideEffectFailed(ctx, "publish_assignment", err, "ride_id", rideID, "driver_id", driverID)
	}
}

func (c *core) publishLocation(ctx context.Context, d *domain.Driver) {
	if d.Location == nil {
		return
	}
	event := events.DriverLocationEvent{
		DriverID:       d.ID,
		Lat:            d.Location.Lat,
		Lng:            d.Location.Lng,
		Heading:        d.Heading,
		SpeedKmh:       d.SpeedKmh,
		AccuracyMeters: d.AccuracyMeters,
		Status:         string(d.Status),
		Timestamp:      d.LastLocationUpdate,
	}
	if err := c.publisher.PublishDriverLocation(ctx, event); err != nil {
		c.sideEffectFailed(ctx, "publish_location", err, "driver_id", d.ID)
	}
}
