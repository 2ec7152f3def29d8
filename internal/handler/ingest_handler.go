package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/be-confident-group/ccapp-tracking/internal/sampler"
	"github.com/be-confident-group/ccapp-tracking/pkg/response"
)

// IngestHandler accepts raw location fixes over HTTP and feeds them into the
// replay platform. It exists for local runs and diagnostics where no real
// location stack is wired in.
type IngestHandler struct {
	emit func(...sampler.Fix)
}

// NewIngestHandler creates an ingest handler delivering fixes through emit
func NewIngestHandler(emit func(...sampler.Fix)) *IngestHandler {
	return &IngestHandler{emit: emit}
}

// Ingest handles POST /api/v1/samples
func (h *IngestHandler) Ingest(c *gin.Context) {
	var fixes []sampler.Fix
	if err := c.ShouldBindJSON(&fixes); err != nil {
		response.BadRequest(c, "Invalid sample batch")
		return
	}
	if len(fixes) == 0 {
		response.BadRequest(c, "Empty sample batch")
		return
	}

	h.emit(fixes...)
	response.Success(c, gin.H{"accepted": len(fixes)})
}
