package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService     *service.RideService
	dispatchService *service.DispatchService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, dispatchService *service.DispatchService) *RideHandler {
	return &RideHandler{
		rideService:     rideService,
		dispatchService: dispatchService,
	}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	RiderID                  string   `json:"rider_id" binding:"required"`
	PickupLat                *float64 `json:"pickup_lat" binding:"required"`
	PickupLng                *float64 `json:"pickup_lng" binding:"required"`
	DestinationLat           *float64 `json:"destination_lat"`
	DestinationLng           *float64 `json:"destination_lng"`
	EstimatedDurationMinutes *int     `json:"estimated_duration_minutes"`
}

// DriverActionRequest is the HTTP request body for accept and start.
type DriverActionRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// CompleteRideRequest is the HTTP request body for completing a ride.
type CompleteRideRequest struct {
	DriverID   string   `json:"driver_id" binding:"required"`
	FareAmount *float64 `json:"fare_amount" binding:"required"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	InitiatedBy string `json:"initiated_by"`
}

// RideResponse is the HTTP response for ride data.
type RideResponse struct {
	ID                       string   `json:"id"`
	RiderID                  string   `json:"rider_id"`
	DriverID                 string   `json:"driver_id,omitempty"`
	PickupLat                float64  `json:"pickup_lat"`
	PickupLng                float64  `json:"pickup_lng"`
	DestinationLat           *float64 `json:"destination_lat,omitempty"`
	DestinationLng           *float64 `json:"destination_lng,omitempty"`
	Status                   string   `json:"status"`
	FareAmount               *float64 `json:"fare_amount,omitempty"`
	EstimatedDurationMinutes *int     `json:"estimated_duration_minutes,omitempty"`
	CreatedAt                string   `json:"created_at"`
	AcceptedAt               string   `json:"accepted_at,omitempty"`
	StartedAt                string   `json:"started_at,omitempty"`
	CompletedAt              string   `json:"completed_at,omitempty"`
	CancelledAt              string   `json:"cancelled_at,omitempty"`
	CancelledBy              string   `json:"cancelled_by,omitempty"`
	Version                  int64    `json:"version"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:                       r.ID,
		RiderID:                  r.RiderID,
		DriverID:                 r.DriverID,
		PickupLat:                r.Pickup.Lat,
		PickupLng:                r.Pickup.Lng,
		Status:                   string(r.Status),
		FareAmount:               r.FareAmount,
		EstimatedDurationMinutes: r.EstimatedDurationMinutes,
		CreatedAt:                formatTime(r.CreatedAt),
		AcceptedAt:               formatTime(r.AcceptedAt),
		StartedAt:                formatTime(r.StartedAt),
		CompletedAt:              formatTime(r.CompletedAt),
		CancelledAt:              formatTime(r.CancelledAt),
		CancelledBy:              r.CancelledBy,
		Version:                  r.Version,
	}
	if r.Destination != nil {
		lat, lng := r.Destination.Lat, r.Destination.Lng
		resp.DestinationLat = &lat
		resp.DestinationLng = &lng
	}
	return resp
}

func toRideResponses(rides []*domain.Ride) []RideResponse {
	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	return response
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		RiderID:                  req.RiderID,
		PickupLat:                *req.PickupLat,
		PickupLng:                *req.PickupLng,
		DestinationLat:           req.DestinationLat,
		DestinationLng:           req.DestinationLng,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetRiderRides handles GET /v1/riders/:id/rides
func (h *RideHandler) GetRiderRides(c *gin.Context) {
	rides, err := h.rideService.RidesForRider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ride, err := h.dispatchService.Accept(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ride, err := h.dispatchService.StartRide(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req CompleteRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ride, err := h.dispatchService.CompleteRide(c.Request.Context(), c.Param("id"), req.DriverID, *req.FareAmount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ride, err := h.dispatchService.CancelRide(c.Request.Context(), c.Param("id"), req.InitiatedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
