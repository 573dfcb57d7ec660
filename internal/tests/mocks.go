package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/events"
	"dispatch/internal/redis"
)

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is an in-memory geo index. FindNearbyDrivers returns
// every indexed driver ordered by id, with DistanceKm left at zero, so
// tests control candidates by what they index.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	UpdateLocationCallCount int32
	RemoveLocationCallCount int32

	UpdateLocationError error
	FindNearbyError     error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.DriverLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redis.DriverLocation, error) {
	if m.FindNearbyError != nil {
		return nil, m.FindNearbyError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		result = append(result, loc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DriverID < result[j].DriverID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.RemoveLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation reports whether a driver is in the index.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// Location returns the indexed location of a driver.
func (m *MockLocationStore) Location(driverID string) (redis.DriverLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	return loc, ok
}

// ──────────────────────────────────────────────
// MOCK DRIVER CACHE
// ──────────────────────────────────────────────

// MockCacheStore is an in-memory driver snapshot cache.
type MockCacheStore struct {
	mu      sync.RWMutex
	drivers map[string]*redis.CachedDriver

	SetDriverError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		drivers: make(map[string]*redis.CachedDriver),
	}
}

func (m *MockCacheStore) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	if m.SetDriverError != nil {
		return m.SetDriverError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.drivers[driver.ID]; ok && current.Version > driver.Version {
		return nil
	}
	c := *driver
	m.drivers[driver.ID] = &c
	return nil
}

func (m *MockCacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

func (m *MockCacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*redis.CachedDriver, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]*redis.CachedDriver, len(driverIDs))
	var missing []string
	for _, id := range driverIDs {
		if d, ok := m.drivers[id]; ok {
			c := *d
			found[id] = &c
			continue
		}
		missing = append(missing, id)
	}
	return found, missing, nil
}

// Get returns the cached snapshot of a driver.
func (m *MockCacheStore) Get(driverID string) (*redis.CachedDriver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[driverID]
	return d, ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory distributed lock. TTLs are ignored.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
	seq   int

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) acquire(key string) (string, bool, error) {
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[key] = token
	return token, true, nil
}

func (m *MockLockStore) release(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	return m.acquire("ride:" + rideID)
}

func (m *MockLockStore) ReleaseRideLock(ctx context.Context, rideID, token string) error {
	return m.release("ride:"+rideID, token)
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error) {
	return m.acquire("driver:" + driverID)
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID, token string) error {
	return m.release("driver:"+driverID, token)
}

// Hold takes a lock on behalf of another dispatcher.
func (m *MockLockStore) Hold(kind, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[kind+":"+id] = "held-elsewhere"
}

// Held returns the number of locks currently held.
func (m *MockLockStore) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records every event it is given.
type MockPublisher struct {
	mu          sync.Mutex
	rides       []events.RideEvent
	locations   []events.DriverLocationEvent
	assignments []events.RideAssignmentEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishRideEvent(ctx context.Context, event events.RideEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides = append(m.rides, event)
	return nil
}

func (m *MockPublisher) PublishDriverLocation(ctx context.Context, event events.DriverLocationEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, event)
	return nil
}

func (m *MockPublisher) PublishRideAssignment(ctx context.Context, event events.RideAssignmentEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// RideEvents returns a copy of the published ride events in order.
func (m *MockPublisher) RideEvents() []events.RideEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.RideEvent(nil), m.rides...)
}

// RideEventTypes returns the published ride event types in order.
func (m *MockPublisher) RideEventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.rides))
	for i, e := range m.rides {
		types[i] = e.EventType
	}
	return types
}

// Assignments returns the published assignment events in order.
func (m *MockPublisher) Assignments() []events.RideAssignmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.RideAssignmentEvent(nil), m.assignments...)
}

// Locations returns the published location events in order.
func (m *MockPublisher) Locations() []events.DriverLocationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.DriverLocationEvent(nil), m.locations...)
}

// Ensure mocks implement interfaces.
var (
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ redis.DriverCacheInterface   = (*MockCacheStore)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ events.Publisher             = (*MockPublisher)(nil)
)
