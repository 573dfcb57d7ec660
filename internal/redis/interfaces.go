package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the interface for driver geo index operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error)
	ReleaseRideLock(ctx context.Context, rideID, token string) error
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error)
	ReleaseDriverLock(ctx context.Context, driverID, token string) error
}

// DriverCacheInterface defines the interface for driver snapshot caching.
type DriverCacheInterface interface {
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
	GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ DriverCacheInterface   = (*CacheStore)(nil)
)
