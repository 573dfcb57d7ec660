package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone"`
	LicensePlate string `json:"license_plate"`
}

// UpdateLocationRequest is the HTTP request body for a location report.
type UpdateLocationRequest struct {
	Lat            *float64 `json:"lat" binding:"required"`
	Lng            *float64 `json:"lng" binding:"required"`
	Heading        *float64 `json:"heading"`
	SpeedKmh       *float64 `json:"speed_kmh"`
	AccuracyMeters *float64 `json:"accuracy_meters"`
}

// GoOnlineRequest is the HTTP request body for going online.
type GoOnlineRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// SetStatusRequest is the HTTP request body for an explicit status change.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// NearbyQuery holds the query parameters of a nearby search.
type NearbyQuery struct {
	Lat      *float64 `form:"lat" binding:"required"`
	Lng      *float64 `form:"lng" binding:"required"`
	RadiusKm float64  `form:"radius_km" binding:"gte=0"`
	Limit    int      `form:"limit" binding:"gte=0"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Phone              string   `json:"phone,omitempty"`
	LicensePlate       string   `json:"license_plate,omitempty"`
	Status             string   `json:"status"`
	CurrentLat         *float64 `json:"current_lat,omitempty"`
	CurrentLng         *float64 `json:"current_lng,omitempty"`
	Heading            *float64 `json:"heading,omitempty"`
	SpeedKmh           *float64 `json:"speed_kmh,omitempty"`
	AccuracyMeters     *float64 `json:"accuracy_meters,omitempty"`
	LastLocationUpdate string   `json:"last_location_update,omitempty"`
	CreatedAt          string   `json:"created_at"`
	Version            int64    `json:"version"`
}

// NearbyDriverResponse is one entry of a nearby search.
type NearbyDriverResponse struct {
	DriverID   string  `json:"driver_id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	resp := DriverResponse{
		ID:                 d.ID,
		Name:               d.Name,
		Phone:              d.Phone,
		LicensePlate:       d.LicensePlate,
		Status:             string(d.Status),
		Heading:            d.Heading,
		SpeedKmh:           d.SpeedKmh,
		AccuracyMeters:     d.AccuracyMeters,
		LastLocationUpdate: formatTime(d.LastLocationUpdate),
		CreatedAt:          formatTime(d.CreatedAt),
		Version:            d.Version,
	}
	if d.Location != nil {
		lat, lng := d.Location.Lat, d.Location.Lng
		resp.CurrentLat = &lat
		resp.CurrentLng = &lng
	}
	return resp
}

func toDriverResponses(drivers []*domain.Driver) []DriverResponse {
	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, toDriverResponse(d))
	}
	return response
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	driver, err := h.driverService.RegisterDriver(c.Request.Context(), service.RegisterDriverRequest{
		Name:         req.Name,
		Phone:        req.Phone,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverService.ListDrivers(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponses(drivers))
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// GetRides handles GET /v1/drivers/:id/rides
func (h *DriverHandler) GetRides(c *gin.Context) {
	rides, err := h.driverService.RidesForDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides))
}

// Nearby handles GET /v1/drivers/nearby
func (h *DriverHandler) Nearby(c *gin.Context) {
	var q NearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBadRequest(c, err)
		return
	}

	drivers, err := h.driverService.NearbyDrivers(c.Request.Context(), *q.Lat, *q.Lng, q.RadiusKm, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, NearbyDriverResponse{
			DriverID:   d.DriverID,
			Name:       d.Name,
			Lat:        d.Lat,
			Lng:        d.Lng,
			DistanceKm: d.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	driver, err := h.driverService.UpdateLocation(c.Request.Context(), domain.LocationUpdate{
		DriverID:       c.Param("id"),
		Lat:            *req.Lat,
		Lng:            *req.Lng,
		Heading:        req.Heading,
		SpeedKmh:       req.SpeedKmh,
		AccuracyMeters: req.AccuracyMeters,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// GoOnline handles POST /v1/drivers/:id/online
func (h *DriverHandler) GoOnline(c *gin.Context) {
	var req GoOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	driver, err := h.driverService.GoOnline(c.Request.Context(), c.Param("id"), *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	driver, err := h.driverService.GoOffline(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// SetStatus handles POST /v1/drivers/:id/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	driver, err := h.driverService.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}
