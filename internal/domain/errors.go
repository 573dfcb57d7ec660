package domain

import "errors"

var (
	// ErrNotFound is returned when a driver or ride id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when the current status does not permit the requested move.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrDriverUnavailable is returned when a driver must be AVAILABLE and is not.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrForbidden is returned when the acting driver does not own the ride.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument is returned for malformed input such as a negative fare.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned on an optimistic-concurrency version mismatch.
	ErrConflict = errors.New("conflict")

	// ErrTimeout is returned when the store does not answer within its bound.
	ErrTimeout = errors.New("timeout")

	// ErrRiderHasActiveRide is returned when a rider requests a second ride.
	ErrRiderHasActiveRide = errors.New("rider already has an active ride")
)

// Retryable reports whether a caller may retry err unmodified.
// Only Conflict and Timeout qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTimeout)
}

// Code returns the symbolic name of the error kind carried by err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrDriverUnavailable):
		return "DRIVER_UNAVAILABLE"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrRiderHasActiveRide):
		return "RIDER_HAS_ACTIVE_RIDE"
	default:
		return "INTERNAL"
	}
}
