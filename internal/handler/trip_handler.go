package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
	"github.com/be-confident-group/ccapp-tracking/internal/service"
	"github.com/be-confident-group/ccapp-tracking/pkg/response"
)

// TripHandler handles HTTP requests for stored trips
type TripHandler struct {
	service *service.TripService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(service *service.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// List handles GET /api/v1/trips
func (h *TripHandler) List(c *gin.Context) {
	var filter models.TripFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	trips, total, err := h.service.List(filter)
	if err != nil {
		response.InternalError(c, "Failed to list trips")
		return
	}

	// Mirror the repository's pagination bounds so the reported page count
	// matches what was actually queried
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 100
	}
	if filter.PageSize > 1000 {
		filter.PageSize = 1000
	}
	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPages++
	}

	response.Success(c, models.TripsResponse{
		Data:       trips,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/v1/trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.service.GetByLocalID(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get trip")
		return
	}
	if trip == nil {
		response.NotFound(c, "Trip not found")
		return
	}

	response.Success(c, trip)
}

// Samples handles GET /api/v1/trips/:id/samples
func (h *TripHandler) Samples(c *gin.Context) {
	samples, err := h.service.Samples(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get trip samples")
		return
	}

	response.Success(c, gin.H{"data": samples, "total": len(samples)})
}

// Delete handles DELETE /api/v1/trips/:id
func (h *TripHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		if errors.Is(err, service.ErrTripActive) {
			response.Conflict(c, "Cannot delete the active trip")
			return
		}
		response.InternalError(c, "Failed to delete trip")
		return
	}

	response.Success(c, gin.H{"deleted": c.Param("id")})
}
