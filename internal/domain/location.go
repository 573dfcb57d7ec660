package domain

import "fmt"

// LocationUpdate is a single telemetry report from a driver's device.
// It is not stored on its own; it mutates the driver record.
type LocationUpdate struct {
	DriverID       string   `validate:"required"`
	Lat            float64  `validate:"gte=-90,lte=90"`
	Lng            float64  `validate:"gte=-180,lte=180"`
	Heading        *float64 `validate:"omitempty,gte=0,lte=359"`
	SpeedKmh       *float64 `validate:"omitempty,gte=0"`
	AccuracyMeters *float64 `validate:"omitempty,gte=0"`
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// ValidateCoordinates returns ErrInvalidArgument when lat/lng are out of range.
func ValidateCoordinates(lat, lng float64) error {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return fmt.Errorf("%w: coordinates (%v, %v) out of range", ErrInvalidArgument, lat, lng)
	}
	return nil
}
