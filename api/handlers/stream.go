// Package handlers provides HTTP API request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentview/console/internal/stream"
)

// StreamHandler handles WebSocket attach requests for agent log streams.
type StreamHandler struct {
	streams *stream.Service
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(streams *stream.Service) *StreamHandler {
	return &StreamHandler{
		streams: streams,
	}
}

// Attach handles WS /ws/agents/:id/logs - attaches a viewer to an agent's
// log stream. Unknown agents are reported over the socket with the reserved
// close code, not with an HTTP status, so the viewer can tell "no such
// agent" apart from an ordinary connection failure.
func (h *StreamHandler) Attach(c *gin.Context) {
	agentID := c.Param("id")
	if agentID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Agent ID is required")
		return
	}

	if err := h.streams.Attach(c.Writer, c.Request, agentID); err != nil {
		// Upgrade failed; the upgrader already wrote the HTTP error
		return
	}
}

// RegisterRoutes registers the stream handler routes on a Gin router group.
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/agents/:id/logs", h.Attach)
}
