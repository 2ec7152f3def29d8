package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/be-confident-group/ccapp-tracking/internal/coordinator"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
	"github.com/be-confident-group/ccapp-tracking/internal/sampler"
	"github.com/be-confident-group/ccapp-tracking/pkg/response"
)

// TrackingHandler exposes the coordinator surface over HTTP
type TrackingHandler struct {
	coord *coordinator.Coordinator
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(coord *coordinator.Coordinator) *TrackingHandler {
	return &TrackingHandler{coord: coord}
}

type startRequest struct {
	Mode string `json:"mode"` // FOREGROUND (default) or BACKGROUND
}

// Start handles POST /api/v1/tracking/start
func (h *TrackingHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "Invalid request body")
		return
	}

	mode := sampler.ModeForeground
	if req.Mode != "" {
		mode = sampler.Mode(req.Mode)
	}

	if err := h.coord.StartTracking(mode); err != nil {
		switch {
		case errors.Is(err, sampler.ErrPermissionDenied):
			response.Error(c, http.StatusForbidden, "Location permission denied")
		case errors.Is(err, sampler.ErrSubscriptionFailed):
			response.Error(c, http.StatusServiceUnavailable, "Location subscription failed")
		default:
			response.InternalError(c, "Failed to start tracking")
		}
		return
	}

	response.Success(c, gin.H{"tracking": true, "mode": mode})
}

// Stop handles POST /api/v1/tracking/stop
func (h *TrackingHandler) Stop(c *gin.Context) {
	trip, err := h.coord.StopTracking()
	if err != nil {
		response.InternalError(c, "Failed to stop tracking")
		return
	}

	response.Success(c, gin.H{"tracking": false, "trip": trip})
}

// Status handles GET /api/v1/tracking/status
func (h *TrackingHandler) Status(c *gin.Context) {
	status, err := h.coord.Status()
	if err != nil {
		response.InternalError(c, "Failed to read tracking status")
		return
	}

	response.Success(c, status)
}

type manualTripRequest struct {
	ActivityType string `json:"activity_type"`
}

// StartManual handles POST /api/v1/tracking/manual
func (h *TrackingHandler) StartManual(c *gin.Context) {
	var req manualTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "Invalid request body")
		return
	}

	trip, err := h.coord.StartManualTrip(req.ActivityType)
	if err != nil {
		if errors.Is(err, repository.ErrTripConflict) {
			response.Conflict(c, "Another trip is still active")
			return
		}
		response.InternalError(c, "Failed to start manual trip")
		return
	}

	response.Success(c, trip)
}

type lifecycleRequest struct {
	Event string `json:"event" binding:"required"`
}

// Lifecycle handles POST /api/v1/tracking/lifecycle
func (h *TrackingHandler) Lifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid lifecycle event")
		return
	}

	h.coord.HandleLifecycleEvent(coordinator.AppLifecycleEvent(req.Event))
	response.Success(c, gin.H{"event": req.Event})
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// Connectivity handles POST /api/v1/tracking/connectivity
func (h *TrackingHandler) Connectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid connectivity state")
		return
	}

	h.coord.HandleConnectivityChange(*req.Online)
	response.Success(c, gin.H{"online": *req.Online})
}
