package handler

import (
	"github.com/gin-gonic/gin"

	"claimlens/internal/realtime"
)

// RealtimeHandler exposes the push channel's health and latest metrics.
type RealtimeHandler struct {
	channel *realtime.Channel
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(channel *realtime.Channel) *RealtimeHandler {
	return &RealtimeHandler{channel: channel}
}

// State handles GET /api/v1/realtime/state
func (h *RealtimeHandler) State(c *gin.Context) {
	RespondOK(c, gin.H{"state": h.channel.State()})
}

// Metrics handles GET /api/v1/realtime/metrics
func (h *RealtimeHandler) Metrics(c *gin.Context) {
	metrics, ok := h.channel.LatestMetrics()
	if !ok {
		RespondOK(c, gin.H{"available": false})
		return
	}
	RespondOK(c, gin.H{"available": true, "metrics": metrics})
}
