package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"claimlens/internal/service"
)

// ExtractionHandler exposes claim-level document tracking and the merged
// extraction record.
type ExtractionHandler struct {
	extractionService service.ExtractionService
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extractionService service.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{extractionService: extractionService}
}

// Track handles POST /api/v1/claims/:id/documents/track
func (h *ExtractionHandler) Track(c *gin.Context) {
	claimID := c.Param("id")

	var req struct {
		DocumentIDs []string `json:"document_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_ids is required")
		return
	}

	if err := h.extractionService.Track(claimID, req.DocumentIDs); err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"claim_id": claimID, "document_ids": req.DocumentIDs})
}

// Statuses handles GET /api/v1/claims/:id/documents/status
func (h *ExtractionHandler) Statuses(c *gin.Context) {
	statuses, err := h.extractionService.Statuses(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, statuses)
}

// Record handles GET /api/v1/claims/:id/extraction
func (h *ExtractionHandler) Record(c *gin.Context) {
	record, err := h.extractionService.Record(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, record)
}

// ResolveConflict handles POST /api/v1/claims/:id/conflicts/resolve
func (h *ExtractionHandler) ResolveConflict(c *gin.Context) {
	claimID := c.Param("id")

	var req struct {
		Field            string `json:"field" binding:"required"`
		Value            string `json:"value" binding:"required"`
		SourceDocumentID string `json:"source_document_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "field, value, and source_document_id are required")
		return
	}

	record, err := h.extractionService.ResolveConflict(claimID, req.Field, req.Value, req.SourceDocumentID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, record)
}

// StopTracking handles DELETE /api/v1/claims/:id/track
func (h *ExtractionHandler) StopTracking(c *gin.Context) {
	if err := h.extractionService.StopTracking(c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"stopped": true})
}
