package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestParseDriverStatus(t *testing.T) {
	for _, s := range DriverStatuses {
		got, err := ParseDriverStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseDriverStatus("ON_BREAK")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to DriverStatus
		want     bool
	}{
		{DriverStatusOffline, DriverStatusAvailable, true},
		{DriverStatusAvailable, DriverStatusOffline, true},
		{DriverStatusOffline, DriverStatusOffline, false},
		{DriverStatusAvailable, DriverStatusBusy, false},
		{DriverStatusBusy, DriverStatusOffline, false},
		{DriverStatusEnRoute, DriverStatusOffline, false},
		{DriverStatusEnRoute, DriverStatusAvailable, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDriver_GoOffline(t *testing.T) {
	tests := []struct {
		from    DriverStatus
		wantErr bool
	}{
		{DriverStatusAvailable, false},
		{DriverStatusOffline, true},
		{DriverStatusBusy, true},
		{DriverStatusEnRoute, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			d := &Driver{ID: "d1", Status: tt.from}
			err := d.GoOffline()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, d.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DriverStatusOffline, d.Status)
		})
	}
}

func TestDriver_GoOnline(t *testing.T) {
	d := &Driver{ID: "d1", Status: DriverStatusOffline}

	require.ErrorIs(t, d.GoOnline(-91, 0, t0), ErrInvalidArgument)
	assert.Nil(t, d.Location)

	require.NoError(t, d.GoOnline(10, 20, t0))
	assert.Equal(t, DriverStatusAvailable, d.Status)
	assert.Equal(t, &Position{Lat: 10, Lng: 20}, d.Location)
	assert.Equal(t, t0, d.LastLocationUpdate)

	assert.ErrorIs(t, d.GoOnline(10, 20, t0), ErrInvalidTransition)
}

func TestDriver_SetStatus(t *testing.T) {
	located := func(s DriverStatus) *Driver {
		return &Driver{ID: "d1", Status: s, Location: &Position{Lat: 1, Lng: 2}}
	}

	tests := []struct {
		name    string
		driver  *Driver
		target  DriverStatus
		wantErr error
	}{
		{"offline to available", located(DriverStatusOffline), DriverStatusAvailable, nil},
		{"available to offline", located(DriverStatusAvailable), DriverStatusOffline, nil},
		{"no location", &Driver{Status: DriverStatusOffline}, DriverStatusAvailable, ErrInvalidArgument},
		{"busy to available", located(DriverStatusBusy), DriverStatusAvailable, ErrInvalidTransition},
		{"request busy", located(DriverStatusAvailable), DriverStatusBusy, ErrInvalidTransition},
		{"request en route", located(DriverStatusBusy), DriverStatusEnRoute, ErrInvalidTransition},
		{"unknown", located(DriverStatusOffline), DriverStatus("PAUSED"), ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.driver.Status
			err := tt.driver.SetStatus(tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, tt.driver.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, tt.driver.Status)
		})
	}
}

func TestDriver_RideDrivenTransitions(t *testing.T) {
	d := &Driver{ID: "d1", Status: DriverStatusAvailable}

	require.NoError(t, d.AssignRide())
	assert.Equal(t, DriverStatusBusy, d.Status)
	assert.ErrorIs(t, d.AssignRide(), ErrDriverUnavailable)

	require.NoError(t, d.BeginRide())
	assert.Equal(t, DriverStatusEnRoute, d.Status)
	assert.ErrorIs(t, d.BeginRide(), ErrInvalidTransition)

	d.ReleaseRide()
	assert.Equal(t, DriverStatusAvailable, d.Status)

	offline := &Driver{ID: "d2", Status: DriverStatusOffline}
	require.NoError(t, offline.BeginRide())
	offline.ReleaseRide()
	assert.Equal(t, DriverStatusOffline, offline.Status)
	assert.ErrorIs(t, offline.AssignRide(), ErrDriverUnavailable)
}

func TestDriver_ApplyLocationKeepsStatus(t *testing.T) {
	heading := 45.0
	for _, s := range DriverStatuses {
		d := &Driver{ID: "d1", Status: s}
		require.NoError(t, d.ApplyLocation(LocationUpdate{DriverID: "d1", Lat: 1, Lng: 2, Heading: &heading}, t0))
		assert.Equal(t, s, d.Status)
		assert.Equal(t, &Position{Lat: 1, Lng: 2}, d.Location)
		assert.Equal(t, &heading, d.Heading)
	}
}

func TestDriver_CloneIsDeep(t *testing.T) {
	speed := 10.0
	d := &Driver{ID: "d1", Location: &Position{Lat: 1, Lng: 2}, SpeedKmh: &speed}
	c := d.Clone()

	c.Location.Lat = 50
	*c.SpeedKmh = 99

	assert.Equal(t, 1.0, d.Location.Lat)
	assert.Equal(t, 10.0, *d.SpeedKmh)
}
