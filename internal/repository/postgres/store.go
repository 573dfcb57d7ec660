package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/repository"
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db      *sql.DB
	drivers *DriverRepository
	rides   *RideRepository
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		drivers: NewDriverRepository(db),
		rides:   NewRideRepository(db),
	}
}

// Drivers returns the non-transactional driver repository.
func (s *Store) Drivers() repository.DriverRepository { return s.drivers }

// Rides returns the non-transactional ride repository.
func (s *Store) Rides() repository.RideRepository { return s.rides }

type txRepositories struct {
	drivers *DriverRepository
	rides   *RideRepository
}

func (t txRepositories) Drivers() repository.DriverRepository { return t.drivers }
func (t txRepositories) Rides() repository.RideRepository     { return t.rides }

// WithinTx runs fn in a database transaction. Rows read by id are locked
// with SELECT ... FOR UPDATE, so callers must read the ride before the
// driver to keep lock order fixed. If the transaction does not commit,
// callers' records get their Version back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(ctx, err)
	}

	versions := &versionLog{}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			versions.rollback()
		}
	}()

	drivers := NewDriverRepositoryWithTx(tx)
	drivers.versions = versions
	rides := NewRideRepositoryWithTx(tx)
	rides.versions = versions
	if err = fn(txRepositories{drivers: drivers, rides: rides}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)
