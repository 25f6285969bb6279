package handler

import (
	"github.com/gin-gonic/gin"

	"claimlens/internal/polling"
)

// DocumentHandler exposes one-shot document status and extraction fetches.
type DocumentHandler struct {
	orch *polling.Orchestrator
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(orch *polling.Orchestrator) *DocumentHandler {
	return &DocumentHandler{orch: orch}
}

// Status handles GET /api/v1/documents/:id/status
func (h *DocumentHandler) Status(c *gin.Context) {
	status, err := h.orch.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, status)
}

// ExtractedData handles GET /api/v1/documents/:id/extracted-data
func (h *DocumentHandler) ExtractedData(c *gin.Context) {
	data, err := h.orch.GetExtractedData(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, data)
}
