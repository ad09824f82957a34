// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentview/console/internal/model"
	"github.com/agentview/console/internal/repository"
	"github.com/agentview/console/internal/stream"
)

// AgentHandler handles HTTP requests for agent management.
type AgentHandler struct {
	repo    *repository.AgentRepository
	streams *stream.Service
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(repo *repository.AgentRepository, streams *stream.Service) *AgentHandler {
	return &AgentHandler{
		repo:    repo,
		streams: streams,
	}
}

// AgentResponse represents an agent in API responses.
type AgentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Task      string `json:"task,omitempty"`
	Status    string `json:"status"`
	Viewers   int    `json:"viewers"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// toAgentResponse converts a model.Agent to AgentResponse.
func (h *AgentHandler) toAgentResponse(a *model.Agent) *AgentResponse {
	return &AgentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Task:      a.Task,
		Status:    string(a.Status),
		Viewers:   h.streams.ClientCount(a.ID),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/agents - registers a new agent.
func (h *AgentHandler) Create(c *gin.Context) {
	var req model.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	now := time.Now()
	agent := &model.Agent{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Task:      req.Task,
		Status:    model.AgentStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(c.Request.Context(), agent); err != nil {
		if errors.Is(err, model.ErrAgentNameTaken) {
			sendError(c, http.StatusConflict, "NAME_TAKEN", err.Error())
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create agent: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, h.toAgentResponse(agent))
}

// List handles GET /api/agents - lists all registered agents.
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.repo.List(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list agents: "+err.Error())
		return
	}

	response := make([]*AgentResponse, len(agents))
	for i, a := range agents {
		response[i] = h.toAgentResponse(a)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/agents/:id - gets a specific agent.
func (h *AgentHandler) Get(c *gin.Context) {
	agentID := c.Param("id")
	if agentID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Agent ID is required")
		return
	}

	agent, err := h.repo.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get agent: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, h.toAgentResponse(agent))
}

// Delete handles DELETE /api/agents/:id - removes an agent and closes its
// viewer connections.
func (h *AgentHandler) Delete(c *gin.Context) {
	agentID := c.Param("id")
	if agentID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Agent ID is required")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), agentID); err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete agent: "+err.Error())
		return
	}

	h.streams.DetachAgent(agentID)
	c.Status(http.StatusNoContent)
}

// UpdateStatus handles POST /api/agents/:id/status - updates an agent's
// lifecycle status.
func (h *AgentHandler) UpdateStatus(c *gin.Context) {
	agentID := c.Param("id")

	var req struct {
		Status model.AgentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	switch req.Status {
	case model.AgentStatusRunning, model.AgentStatusStopped, model.AgentStatusFailed:
	default:
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status: "+string(req.Status))
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), agentID, req.Status); err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update status: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// PublishLogs handles POST /api/agents/:id/logs - ingests a batch of output
// lines for an agent and broadcasts them to attached viewers.
func (h *AgentHandler) PublishLogs(c *gin.Context) {
	agentID := c.Param("id")

	var req model.PublishLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	lines := make([]model.LogLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = model.LogLine{
			Content:   l.Content,
			Stream:    l.Stream,
			Timestamp: l.Timestamp,
		}
	}

	if err := h.streams.Publish(c.Request.Context(), agentID, lines); err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to publish logs: "+err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"published": len(lines)})
}

// GetLogs handles GET /api/agents/:id/logs - returns persisted log lines
// after an optional cursor.
func (h *AgentHandler) GetLogs(c *gin.Context) {
	agentID := c.Param("id")

	exists, err := h.repo.Exists(c.Request.Context(), agentID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check agent: "+err.Error())
		return
	}
	if !exists {
		sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
		return
	}

	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid since parameter")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	if err != nil || limit <= 0 {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid limit parameter")
		return
	}

	lines, err := h.repo.ListLogsSince(c.Request.Context(), agentID, since, limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list logs: "+err.Error())
		return
	}
	if lines == nil {
		lines = []model.LogLine{}
	}

	c.JSON(http.StatusOK, lines)
}

// RegisterRoutes registers the agent handler routes on a Gin router group.
func (h *AgentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.POST("", h.Create)
		agents.GET("", h.List)
		agents.GET("/:id", h.Get)
		agents.DELETE("/:id", h.Delete)
		agents.POST("/:id/status", h.UpdateStatus)
		agents.POST("/:id/logs", h.PublishLogs)
		agents.GET("/:id/logs", h.GetLogs)
	}
}
