package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func rideLockKey(rideID string) string {
	return fmt.Sprintf("dispatch:lock:ride:%s", rideID)
}

func driverLockKey(driverID string) string {
	return fmt.Sprintf("dispatch:lock:driver:%s", driverID)
}

func (s *LockStore) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (s *LockStore) release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}

// AcquireRideLock attempts to lock a ride. The returned token must be
// passed to ReleaseRideLock. ok is false if the lock is already held.
func (s *LockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	return s.acquire(ctx, rideLockKey(rideID), ttl)
}

// ReleaseRideLock releases a ride lock acquired with token.
func (s *LockStore) ReleaseRideLock(ctx context.Context, rideID, token string) error {
	return s.release(ctx, rideLockKey(rideID), token)
}

// AcquireDriverLock attempts to lock a driver.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error) {
	return s.acquire(ctx, driverLockKey(driverID), ttl)
}

// ReleaseDriverLock releases a driver lock acquired with token.
func (s *LockStore) ReleaseDriverLock(ctx context.Context, driverID, token string) error {
	return s.release(ctx, driverLockKey(driverID), token)
}
