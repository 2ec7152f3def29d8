package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/be-confident-group/ccapp-tracking/internal/coordinator"
	"github.com/be-confident-group/ccapp-tracking/pkg/response"
)

// SyncHandler handles explicit sync requests and pending-state queries
type SyncHandler struct {
	coord *coordinator.Coordinator
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(coord *coordinator.Coordinator) *SyncHandler {
	return &SyncHandler{coord: coord}
}

// SyncNow handles POST /api/v1/sync
func (h *SyncHandler) SyncNow(c *gin.Context) {
	report, err := h.coord.SyncNow(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Sync failed")
		return
	}

	response.Success(c, report)
}

// Pending handles GET /api/v1/sync/pending
func (h *SyncHandler) Pending(c *gin.Context) {
	count, err := h.coord.UnsyncedCount()
	if err != nil {
		response.InternalError(c, "Failed to count pending trips")
		return
	}

	response.Success(c, gin.H{"unsynced_count": count})
}
