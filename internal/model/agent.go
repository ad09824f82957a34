package model

import "time"

// AgentStatus represents the lifecycle status of a registered agent.
type AgentStatus string

const (
	AgentStatusRunning AgentStatus = "running"
	AgentStatusStopped AgentStatus = "stopped"
	AgentStatusFailed  AgentStatus = "failed"
)

// Agent represents a coding agent whose log output can be streamed.
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Task      string      `json:"task,omitempty"`
	Status    AgentStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// LogLine represents one persisted line of agent output. Timestamp is
// milliseconds since the Unix epoch, matching the wire format.
type LogLine struct {
	ID        int64  `json:"id"`
	AgentID   string `json:"agentId"`
	Content   string `json:"content"`
	Stream    string `json:"stream,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// CreateAgentRequest represents a request to register a new agent.
type CreateAgentRequest struct {
	Name string `json:"name" binding:"required"`
	Task string `json:"task"`
}

// Validate validates the create agent request.
func (r *CreateAgentRequest) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// PublishLogsRequest represents a batch of log lines pushed for an agent.
type PublishLogsRequest struct {
	Lines []PublishLine `json:"lines" binding:"required"`
}

// PublishLine is one line in a publish request. A zero timestamp means the
// server stamps the line at receipt time.
type PublishLine struct {
	Content   string `json:"content"`
	Stream    string `json:"stream"`
	Timestamp int64  `json:"timestamp"`
}

// Validate validates the publish request.
func (r *PublishLogsRequest) Validate() error {
	if len(r.Lines) == 0 {
		return ErrLinesRequired
	}
	return nil
}
