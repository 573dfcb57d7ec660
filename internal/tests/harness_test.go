package tests

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
	"dispatch/internal/service"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires the services to an in-memory store and mock side effects.
type harness struct {
	store     *memory.Store
	locations *MockLocationStore
	cache     *MockCacheStore
	locks     *MockLockStore
	publisher *MockPublisher
	clock     *testClock

	drivers  *service.DriverService
	rides    *service.RideService
	dispatch *service.DispatchService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithTimeout(t, time.Second)
}

func newHarnessWithTimeout(t *testing.T, storeTimeout time.Duration) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		locations: NewMockLocationStore(),
		cache:     NewMockCacheStore(),
		locks:     NewMockLockStore(),
		publisher: NewMockPublisher(),
		clock:     newTestClock(),
	}

	deps := service.Dependencies{
		Store:        h.store,
		Publisher:    h.publisher,
		Locations:    h.locations,
		Cache:        h.cache,
		Locks:        h.locks,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        h.clock.Now,
		StoreTimeout: storeTimeout,
		LockTTL:      time.Second,
	}
	h.drivers = service.NewDriverService(deps, 0, 0)
	h.rides = service.NewRideService(deps)
	h.dispatch = service.NewDispatchService(deps)
	return h
}

// onlineDriver registers a driver and brings it online at lat/lng.
func (h *harness) onlineDriver(t *testing.T, name string, lat, lng float64) *domain.Driver {
	t.Helper()
	ctx := context.Background()

	d, err := h.drivers.RegisterDriver(ctx, service.RegisterDriverRequest{Name: name})
	require.NoError(t, err)

	d, err = h.drivers.GoOnline(ctx, d.ID, lat, lng)
	require.NoError(t, err)
	return d
}

// requestRide creates a REQUESTED ride for riderID at a fixed pickup.
func (h *harness) requestRide(t *testing.T, riderID string) *domain.Ride {
	t.Helper()

	r, err := h.rides.CreateRide(context.Background(), service.CreateRideRequest{
		RiderID:   riderID,
		PickupLat: 40.7128,
		PickupLng: -74.0060,
	})
	require.NoError(t, err)
	return r
}

// storedDriver reads a driver straight from the store.
func (h *harness) storedDriver(t *testing.T, id string) *domain.Driver {
	t.Helper()
	d, err := h.store.Drivers().GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

// storedRide reads a ride straight from the store.
func (h *harness) storedRide(t *testing.T, id string) *domain.Ride {
	t.Helper()
	r, err := h.store.Rides().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

// forceDriverStatus overwrites a stored driver's status, bypassing the
// state machine, to reach states the API cannot produce.
func (h *harness) forceDriverStatus(t *testing.T, id string, status domain.DriverStatus) {
	t.Helper()
	d := h.storedDriver(t, id)
	d.Status = status
	require.NoError(t, h.store.Drivers().Save(context.Background(), d))
}
