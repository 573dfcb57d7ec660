// Package memory is an in-process implementation of repository.Store.
// Transactions are serialized behind a single lock whose acquisition
// honors the caller's context deadline.
package memory

import (
	"context"
	"fmt"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Store keeps drivers and rides in maps. Records are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	sem     chan struct{}
	drivers map[string]*domain.Driver
	rides   map[string]*domain.Ride
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sem:     make(chan struct{}, 1),
		drivers: make(map[string]*domain.Driver),
		rides:   make(map[string]*domain.Ride),
	}
}

func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return repository.ContextError(ctx, err)
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return repository.ContextError(ctx, ctx.Err())
	}
}

func (s *Store) unlock() {
	<-s.sem
}

// WithinTx runs fn with exclusive access to the store. Writes are staged
// and applied only when fn returns nil. If the transaction does not
// commit, callers' records get their Version back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	tx := &txView{
		base:    s,
		drivers: make(map[string]*domain.Driver),
		rides:   make(map[string]*domain.Ride),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return repository.ContextError(ctx, err)
	}
	for id, d := range tx.drivers {
		s.drivers[id] = d
	}
	for id, r := range tx.rides {
		s.rides[id] = r
	}
	return nil
}

// Drivers returns a repository whose every call is its own transaction.
func (s *Store) Drivers() repository.DriverRepository {
	return autoDrivers{s: s}
}

// Rides returns a repository whose every call is its own transaction.
func (s *Store) Rides() repository.RideRepository {
	return autoRides{s: s}
}

// txView overlays staged writes on the committed maps.
type txView struct {
	base    *Store
	drivers map[string]*domain.Driver
	rides   map[string]*domain.Ride
	undo    []func()
}

// restoreVersion remembers v's current value for rollback.
func (t *txView) restoreVersion(v *int64) {
	prev := *v
	t.undo = append(t.undo, func() { *v = prev })
}

func (t *txView) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *txView) Drivers() repository.DriverRepository { return txDrivers{t} }
func (t *txView) Rides() repository.RideRepository     { return txRides{t} }

func (t *txView) driver(id string) (*domain.Driver, bool) {
	if d, ok := t.drivers[id]; ok {
		return d, true
	}
	d, ok := t.base.drivers[id]
	return d, ok
}

func (t *txView) ride(id string) (*domain.Ride, bool) {
	if r, ok := t.rides[id]; ok {
		return r, true
	}
	r, ok := t.base.rides[id]
	return r, ok
}

func (t *txView) eachRide(fn func(r *domain.Ride)) {
	for id, r := range t.base.rides {
		if staged, ok := t.rides[id]; ok {
			r = staged
		}
		fn(r)
	}
	for id, r := range t.rides {
		if _, ok := t.base.rides[id]; !ok {
			fn(r)
		}
	}
}

type txDrivers struct{ t *txView }

func (r txDrivers) Create(ctx context.Context, driver *domain.Driver) error {
	if _, ok := r.t.driver(driver.ID); ok {
		return fmt.Errorf("%w: driver %s already exists", repository.ErrConflict, driver.ID)
	}
	r.t.restoreVersion(&driver.Version)
	driver.Version = 1
	r.t.drivers[driver.ID] = driver.Clone()
	return nil
}

func (r txDrivers) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	d, ok := r.t.driver(id)
	if !ok {
		return nil, fmt.Errorf("driver %s: %w", id, repository.ErrNotFound)
	}
	return d.Clone(), nil
}

func (r txDrivers) GetAll(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	var drivers []*domain.Driver
	seen := make(map[string]bool)
	add := func(d *domain.Driver) {
		if seen[d.ID] {
			return
		}
		seen[d.ID] = true
		if status == "" || d.Status == status {
			drivers = append(drivers, d.Clone())
		}
	}
	for _, d := range r.t.drivers {
		add(d)
	}
	for _, d := range r.t.base.drivers {
		add(d)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].ID < drivers[j].ID })
	return drivers, nil
}

func (r txDrivers) Save(ctx context.Context, driver *domain.Driver) error {
	current, ok := r.t.driver(driver.ID)
	if !ok {
		return fmt.Errorf("driver %s: %w", driver.ID, repository.ErrNotFound)
	}
	if current.Version != driver.Version {
		return fmt.Errorf("%w: driver %s version %d, stored %d", repository.ErrConflict, driver.ID, driver.Version, current.Version)
	}
	r.t.restoreVersion(&driver.Version)
	driver.Version++
	r.t.drivers[driver.ID] = driver.Clone()
	return nil
}

type txRides struct{ t *txView }

func (r txRides) Create(ctx context.Context, ride *domain.Ride) error {
	if _, ok := r.t.ride(ride.ID); ok {
		return fmt.Errorf("%w: ride %s already exists", repository.ErrConflict, ride.ID)
	}
	r.t.restoreVersion(&ride.Version)
	ride.Version = 1
	r.t.rides[ride.ID] = ride.Clone()
	return nil
}

func (r txRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride, ok := r.t.ride(id)
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", id, repository.ErrNotFound)
	}
	return ride.Clone(), nil
}

func (r txRides) filter(match func(*domain.Ride) bool) []*domain.Ride {
	var rides []*domain.Ride
	r.t.eachRide(func(ride *domain.Ride) {
		if match(ride) {
			rides = append(rides, ride.Clone())
		}
	})
	sort.Slice(rides, func(i, j int) bool {
		if rides[i].CreatedAt.Equal(rides[j].CreatedAt) {
			return rides[i].ID < rides[j].ID
		}
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})
	return rides
}

func (r txRides) GetByDriverID(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return r.filter(func(ride *domain.Ride) bool { return ride.DriverID == driverID }), nil
}

func (r txRides) GetByRiderID(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	return r.filter(func(ride *domain.Ride) bool { return ride.RiderID == riderID }), nil
}

func (r txRides) GetOpenByRiderID(ctx context.Context, riderID string) (*domain.Ride, error) {
	open := r.filter(func(ride *domain.Ride) bool {
		return ride.RiderID == riderID && ride.Status.Open()
	})
	if len(open) == 0 {
		return nil, nil
	}
	return open[0], nil
}

func (r txRides) Save(ctx context.Context, ride *domain.Ride) error {
	current, ok := r.t.ride(ride.ID)
	if !ok {
		return fmt.Errorf("ride %s: %w", ride.ID, repository.ErrNotFound)
	}
	if current.Version != ride.Version {
		return fmt.Errorf("%w: ride %s version %d, stored %d", repository.ErrConflict, ride.ID, ride.Version, current.Version)
	}
	r.t.restoreVersion(&ride.Version)
	ride.Version++
	r.t.rides[ride.ID] = ride.Clone()
	return nil
}

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)
