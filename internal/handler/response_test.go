package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"invalid argument", service.ErrInvalidDriverID, http.StatusBadRequest},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"driver unavailable", domain.ErrDriverUnavailable, http.StatusConflict},
		{"rider has active ride", domain.ErrRiderHasActiveRide, http.StatusConflict},
		{"lock busy", service.ErrLockBusy, http.StatusConflict},
		{"timeout", fmt.Errorf("load ride: %w", domain.ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestRespondError_Body(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
		message   string
	}{
		{"conflict is retryable", service.ErrLockBusy, http.StatusConflict, "CONFLICT", true, service.ErrLockBusy.Error()},
		{"transition is not", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", false, domain.ErrInvalidTransition.Error()},
		{"internal is masked", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL", false, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tt.err)

			require.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.status == http.StatusInternalServerError, len(c.Errors) == 1)
		})
	}
}

func TestToRideResponse_OmitsUnsetTimestamps(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	resp := toRideResponse(&domain.Ride{
		ID:        "r1",
		RiderID:   "u1",
		Status:    domain.RideStatusRequested,
		CreatedAt: created,
		Pickup:    domain.Position{Lat: 1, Lng: 2},
	})

	assert.Equal(t, "2024-03-01T14:00:00Z", resp.CreatedAt)
	assert.Empty(t, resp.AcceptedAt)
	assert.Nil(t, resp.DestinationLat)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "accepted_at")
	assert.Contains(t, string(raw), `"status":"REQUESTED"`)
}
