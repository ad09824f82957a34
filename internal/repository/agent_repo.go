package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentview/console/internal/model"
)

// AgentRepository provides data access for agents and their persisted log
// lines.
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create inserts a new agent into the database.
func (r *AgentRepository) Create(ctx context.Context, agent *model.Agent) error {
	query := `
		INSERT INTO agents (id, name, task, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Task,
		agent.Status,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return model.ErrAgentNameTaken
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// GetByID retrieves an agent by its ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	query := `
		SELECT id, name, task, status, created_at, updated_at
		FROM agents
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves an agent by its unique name.
func (r *AgentRepository) GetByName(ctx context.Context, name string) (*model.Agent, error) {
	query := `
		SELECT id, name, task, status, created_at, updated_at
		FROM agents
		WHERE name = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

func (r *AgentRepository) scanOne(row *sql.Row) (*model.Agent, error) {
	agent := &model.Agent{}
	var task sql.NullString

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&task,
		&agent.Status,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	if task.Valid {
		agent.Task = task.String
	}

	return agent, nil
}

// List retrieves all agents, newest first.
func (r *AgentRepository) List(ctx context.Context) ([]*model.Agent, error) {
	query := `
		SELECT id, name, task, status, created_at, updated_at
		FROM agents
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*model.Agent
	for rows.Next() {
		agent := &model.Agent{}
		var task sql.NullString

		err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&task,
			&agent.Status,
			&agent.CreatedAt,
			&agent.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}

		if task.Valid {
			agent.Task = task.String
		}

		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

// Delete removes an agent and, via the cascade, its persisted log lines.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM agents WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrAgentNotFound
	}

	return nil
}

// UpdateStatus updates the status of an agent.
func (r *AgentRepository) UpdateStatus(ctx context.Context, id string, status model.AgentStatus) error {
	query := `
		UPDATE agents
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrAgentNotFound
	}

	return nil
}

// Exists checks if an agent exists.
func (r *AgentRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT 1 FROM agents WHERE id = ? LIMIT 1`

	var exists int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check agent existence: %w", err)
	}

	return true, nil
}

// AppendLogs persists a batch of log lines for an agent.
func (r *AgentRepository) AppendLogs(ctx context.Context, agentID string, lines []model.LogLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_lines (agent_id, content, stream, timestamp)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		if _, err := stmt.ExecContext(ctx, agentID, line.Content, line.Stream, line.Timestamp); err != nil {
			return fmt.Errorf("failed to insert log line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log lines: %w", err)
	}

	return nil
}

// ListLogsSince retrieves up to limit log lines for an agent with a
// timestamp strictly greater than since, in ascending timestamp order.
func (r *AgentRepository) ListLogsSince(ctx context.Context, agentID string, since int64, limit int) ([]model.LogLine, error) {
	query := `
		SELECT id, agent_id, content, stream, timestamp
		FROM log_lines
		WHERE agent_id = ? AND timestamp > ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, agentID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list log lines: %w", err)
	}
	defer rows.Close()

	var lines []model.LogLine
	for rows.Next() {
		var line model.LogLine
		var stream sql.NullString

		if err := rows.Scan(&line.ID, &line.AgentID, &line.Content, &stream, &line.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		if stream.Valid {
			line.Stream = stream.String
		}

		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log lines: %w", err)
	}

	return lines, nil
}

// PruneLogs deletes all but the most recent keep log lines for an agent.
func (r *AgentRepository) PruneLogs(ctx context.Context, agentID string, keep int) error {
	query := `
		DELETE FROM log_lines
		WHERE agent_id = ? AND id NOT IN (
			SELECT id FROM log_lines
			WHERE agent_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
	`

	if _, err := r.db.ExecContext(ctx, query, agentID, agentID, keep); err != nil {
		return fmt.Errorf("failed to prune log lines: %w", err)
	}

	return nil
}
