package model

import "errors"

var (
	// ErrNameRequired is returned when an agent registration is missing the name.
	ErrNameRequired = errors.New("agent name is required")

	// ErrLinesRequired is returned when a log publish request carries no lines.
	ErrLinesRequired = errors.New("at least one log line is required")

	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentNameTaken is returned when an agent name is already registered.
	ErrAgentNameTaken = errors.New("agent name already registered")
)
