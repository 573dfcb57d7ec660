package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DriverCacheTTL bounds how long a snapshot outlives its last refresh.
const DriverCacheTTL = 30 * time.Second

const driverCachePrefix = "dispatch:cache:driver:"

// setDriverScript writes a snapshot unless the stored one carries a
// higher version. ARGV: snapshot JSON, version, TTL in milliseconds.
var setDriverScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, stored = pcall(cjson.decode, current)
	if ok and type(stored) == "table" and tonumber(stored.version) and tonumber(stored.version) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// CachedDriver is a read-model snapshot of a driver. It may lag the store
// and is never used to validate a transition.
type CachedDriver struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Located  bool    `json:"located"`
	Version  int64   `json:"version"`
	CachedAt int64   `json:"cached_at"`
}

// CacheStore handles driver snapshot caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SetDriver stores a driver snapshot. A snapshot older than the cached
// one is dropped so out-of-order writers cannot roll the cache back.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	key := driverCachePrefix + driver.ID
	return setDriverScript.Run(ctx, s.client, []string{key}, data, driver.Version, DriverCacheTTL.Milliseconds()).Err()
}

// InvalidateDriver removes a driver snapshot.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// GetDriversBatch retrieves snapshots using a pipeline.
// Returns a map of driverID -> CachedDriver, and a slice of missing IDs.
func (s *CacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error) {
	result := make(map[string]*CachedDriver, len(driverIDs))
	if len(driverIDs) == 0 {
		return result, nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(driverIDs))
	for i, id := range driverIDs {
		cmds[i] = pipe.Get(ctx, driverCachePrefix+id)
	}

	// Exec reports redis.Nil when any key is missing; per-command errors
	// are inspected below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	var missing []string
	for i, cmd := range cmds {
		id := driverIDs[i]
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var driver CachedDriver
		if err := json.Unmarshal(data, &driver); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &driver
	}

	return result, missing, nil
}
