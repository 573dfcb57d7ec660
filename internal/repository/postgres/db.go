package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// PostgreSQL SQLSTATE codes the store translates.
const (
	uniqueViolation      = "23505"
	numericOutOfRange    = "22003"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// openRiderIndex backs the one-open-ride-per-rider rule.
const openRiderIndex = "uq_rides_open_rider"

// mapError converts driver errors into the store taxonomy.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			if pqErr.Constraint == openRiderIndex {
				return fmt.Errorf("%w: %s", domain.ErrRiderHasActiveRide, pqErr.Message)
			}
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
		case serializationFailure, deadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
		case numericOutOfRange:
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, pqErr.Message)
		}
	}
	return repository.ContextError(ctx, err)
}

// versionLog lets a transaction hand callers' versions back when it
// does not commit. A nil log just assigns.
type versionLog struct {
	undo []func()
}

func (l *versionLog) set(v *int64, next int64) {
	if l != nil {
		prev := *v
		l.undo = append(l.undo, func() { *v = prev })
	}
	*v = next
}

func (l *versionLog) rollback() {
	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
