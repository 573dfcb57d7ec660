package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// 2. DISPATCH COORDINATION
// ──────────────────────────────────────────────

func TestAccept_BusyDriver_DriverUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	d2 := h.onlineDriver(t, "D2", 40.7140, -74.0040)
	first := h.requestRide(t, "rider-1")
	_, err := h.dispatch.Accept(ctx, first.ID, d2.ID)
	require.NoError(t, err)

	r2 := h.requestRide(t, "rider-2")
	rideBefore := h.storedRide(t, r2.ID)
	driverBefore := h.storedDriver(t, d2.ID)
	require.Equal(t, domain.DriverStatusBusy, driverBefore.Status)

	_, err = h.dispatch.Accept(ctx, r2.ID, d2.ID)
	require.ErrorIs(t, err, domain.ErrDriverUnavailable)
	assert.False(t, domain.Retryable(err))

	assert.Equal(t, rideBefore, h.storedRide(t, r2.ID), "ride unchanged")
	assert.Equal(t, driverBefore, h.storedDriver(t, d2.ID), "driver unchanged")
}

func TestAccept_EnRouteOrOfflineDriver_DriverUnavailable(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.DriverStatus{domain.DriverStatusEnRoute, domain.DriverStatusOffline} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			d := h.onlineDriver(t, "D", 40.7140, -74.0040)
			h.forceDriverStatus(t, d.ID, status)
			r := h.requestRide(t, "rider-1")

			_, err := h.dispatch.Accept(context.Background(), r.ID, d.ID)
			require.ErrorIs(t, err, domain.ErrDriverUnavailable)
			assert.Equal(t, domain.RideStatusRequested, h.storedRide(t, r.ID).Status)
		})
	}
}

func TestAccept_ConcurrentRidesForOneDriver_ExactlyOneWins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)

	const n = 16
	rides := make([]*domain.Ride, n)
	for i := range rides {
		rides[i] = h.requestRide(t, fmt.Sprintf("rider-%d", i))
	}

	var wg sync.WaitGroup
	var wins, unavailable, conflicts int32
	for _, r := range rides {
		wg.Add(1)
		go func(rideID string) {
			defer wg.Done()
			_, err := h.dispatch.Accept(context.Background(), rideID, d1.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, domain.ErrDriverUnavailable):
				atomic.AddInt32(&unavailable, 1)
			case errors.Is(err, domain.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins, "exactly one ride is accepted")
	assert.Equal(t, int32(n-1), unavailable+conflicts)

	accepted := 0
	for _, r := range rides {
		if h.storedRide(t, r.ID).Status == domain.RideStatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "one active ride per driver")
	assert.Equal(t, 0, h.locks.Held(), "all locks released")
}

func TestAccept_ConcurrentDriversForOneRide_ExactlyOneWins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	const n = 8
	drivers := make([]*domain.Driver, n)
	for i := range drivers {
		drivers[i] = h.onlineDriver(t, fmt.Sprintf("D%d", i), 40.7130, -74.0050)
	}
	r1 := h.requestRide(t, "rider-1")

	var wg sync.WaitGroup
	var wins int32
	for _, d := range drivers {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			if _, err := h.dispatch.Accept(context.Background(), r1.ID, driverID); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(d.ID)
	}
	wg.Wait()

	require.Equal(t, int32(1), wins)

	ride := h.storedRide(t, r1.ID)
	busy := 0
	for _, d := range drivers {
		stored := h.storedDriver(t, d.ID)
		if stored.Status == domain.DriverStatusBusy {
			busy++
			assert.Equal(t, ride.DriverID, d.ID)
		}
	}
	assert.Equal(t, 1, busy)
}

func TestAccept_ObservedAtomically(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")

	stop := make(chan struct{})
	var violations int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = h.store.WithinTx(context.Background(), func(tx repository.Repositories) error {
					ride, err := tx.Rides().GetByID(context.Background(), r1.ID)
					if err != nil {
						return err
					}
					driver, err := tx.Drivers().GetByID(context.Background(), d1.ID)
					if err != nil {
						return err
					}
					accepted := ride.Status == domain.RideStatusAccepted
					busy := driver.Status == domain.DriverStatusBusy
					if accepted != busy {
						atomic.AddInt32(&violations, 1)
					}
					return nil
				})
			}
		}()
	}

	_, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Zero(t, violations, "ride ACCEPTED and driver BUSY must appear together")
}

func TestAccept_LockHeldElsewhere_RetryableConflict(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")

	h.locks.Hold("driver", d1.ID)

	_, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, domain.RideStatusRequested, h.storedRide(t, r1.ID).Status)
	assert.Equal(t, 1, h.locks.Held(), "ride lock released after driver lock failed")
}

func TestAccept_LockStoreDown_StillCommits(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")
	h.locks.AcquireError = errors.New("redis: connection refused")

	ride, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RideStatusAccepted, ride.Status)
}

func TestAccept_SideEffectFailure_DoesNotUndoCommit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")

	h.publisher.PublishError = errors.New("kafka: broker not available")
	h.locations.UpdateLocationError = errors.New("redis: timeout")
	h.cache.SetDriverError = errors.New("redis: timeout")

	_, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RideStatusAccepted, h.storedRide(t, r1.ID).Status)
	assert.Equal(t, domain.DriverStatusBusy, h.storedDriver(t, d1.ID).Status)
}

func TestAccept_UpdatesDriverSnapshot(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")

	_, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	require.NoError(t, err)

	snap, ok := h.cache.Get(d1.ID)
	require.True(t, ok)
	assert.Equal(t, string(domain.DriverStatusBusy), snap.Status)
	assert.Equal(t, h.storedDriver(t, d1.ID).Version, snap.Version)
}

func TestTransition_StoreBusy_Timeout(t *testing.T) {
	t.Parallel()
	h := newHarnessWithTimeout(t, 20*time.Millisecond)

	d1 := h.onlineDriver(t, "D1", 40.7130, -74.0050)
	r1 := h.requestRide(t, "rider-1")

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.store.WithinTx(context.Background(), func(tx repository.Repositories) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	_, err := h.dispatch.Accept(context.Background(), r1.ID, d1.ID)
	close(release)
	<-done

	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, domain.RideStatusRequested, h.storedRide(t, r1.ID).Status)
	assert.Equal(t, domain.DriverStatusAvailable, h.storedDriver(t, d1.ID).Status)
}
