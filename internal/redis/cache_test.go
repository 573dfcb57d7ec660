package redis

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHook answers every command locally and keeps its arguments.
type recordingHook struct {
	mu     sync.Mutex
	args   [][]any
	result int64
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *recordingHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.args = append(h.args, cmd.Args())
		if c, ok := cmd.(*redis.Cmd); ok {
			c.SetVal(h.result)
		}
		return nil
	}
}

func TestCacheStore_SetDriverSendsVersionedWrite(t *testing.T) {
	hook := &recordingHook{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })

	snap := &CachedDriver{ID: "d1", Name: "Ada", Status: "AVAILABLE", Version: 6}
	require.NoError(t, NewCacheStore(client).SetDriver(context.Background(), snap))

	require.Len(t, hook.args, 1)
	args := hook.args[0]
	require.Len(t, args, 7)
	assert.Equal(t, "evalsha", args[0])
	assert.Equal(t, 1, args[2])
	assert.Equal(t, driverCachePrefix+"d1", args[3])

	var written CachedDriver
	require.NoError(t, json.Unmarshal(args[4].([]byte), &written))
	assert.Equal(t, *snap, written)
	assert.Equal(t, int64(6), args[5])
	assert.Equal(t, DriverCacheTTL.Milliseconds(), args[6])
}

func TestCacheStore_SetDriverStaleWriteIsNotAnError(t *testing.T) {
	hook := &recordingHook{result: 0}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })

	err := NewCacheStore(client).SetDriver(context.Background(), &CachedDriver{ID: "d1", Version: 5})
	assert.NoError(t, err)
}

// TestCacheStore_OlderVersionDoesNotOverwrite needs a Redis server at
// DISPATCH_TEST_REDIS_ADDR.
func TestCacheStore_OlderVersionDoesNotOverwrite(t *testing.T) {
	addr := os.Getenv("DISPATCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DISPATCH_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	store := NewCacheStore(client)
	id := "cache-test-driver"
	t.Cleanup(func() { _ = store.InvalidateDriver(ctx, id) })

	require.NoError(t, store.SetDriver(ctx, &CachedDriver{ID: id, Status: "BUSY", Version: 6}))
	require.NoError(t, store.SetDriver(ctx, &CachedDriver{ID: id, Status: "AVAILABLE", Version: 5}))

	found, missing, err := store.GetDriversBatch(ctx, []string{id})
	require.NoError(t, err)
	require.Empty(t, missing)
	assert.Equal(t, int64(6), found[id].Version)
	assert.Equal(t, "BUSY", found[id].Status)

	require.NoError(t, store.SetDriver(ctx, &CachedDriver{ID: id, Status: "EN_ROUTE", Version: 7}))
	found, _, err = store.GetDriversBatch(ctx, []string{id})
	require.NoError(t, err)
	assert.Equal(t, "EN_ROUTE", found[id].Status)

	ttl, err := client.PTTL(ctx, driverCachePrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Milliseconds(), int64(0))
}
