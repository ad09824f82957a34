package stream

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/agentview/console/internal/model"
	"github.com/agentview/console/internal/repository"
	"github.com/agentview/console/pkg/logstream"
)

// Service glues the agent repository to the per-agent hubs. It persists
// published output, keeps the in-memory replay window warm, and answers
// viewer replay requests.
type Service struct {
	hubManager *HubManager
	handler    *Handler
	repo       *repository.AgentRepository
}

// NewService creates a new stream service.
func NewService(repo *repository.AgentRepository) *Service {
	s := &Service{
		hubManager: NewHubManager(),
		repo:       repo,
	}
	s.handler = NewHandler(s.hubManager, s)
	return s
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// HubManager returns the hub manager.
func (s *Service) HubManager() *HubManager {
	return s.hubManager
}

// AgentExists implements AgentLookup for the handler.
func (s *Service) AgentExists(agentID string) bool {
	exists, err := s.repo.Exists(context.Background(), agentID)
	if err != nil {
		log.Printf("Failed to check agent %s: %v", agentID, err)
		return false
	}
	return exists
}

// Attach handles a new viewer connection for an agent.
func (s *Service) Attach(w http.ResponseWriter, r *http.Request, agentID string) error {
	if s.AgentExists(agentID) {
		s.ensureHub(r.Context(), agentID)
	}
	return s.handler.HandleConnection(w, r, agentID)
}

// ensureHub returns the agent's hub, creating and seeding it from the
// database on first use.
func (s *Service) ensureHub(ctx context.Context, agentID string) *Hub {
	if hub := s.hubManager.Get(agentID); hub != nil {
		return hub
	}

	hub := s.hubManager.GetOrCreate(agentID)

	// Warm the replay window from persisted output. The persisted set is
	// pruned to the retention limit on every publish, so this is bounded.
	lines, err := s.repo.ListLogsSince(ctx, agentID, 0, retainedLines)
	if err != nil {
		log.Printf("Failed to seed hub for agent %s: %v", agentID, err)
	} else if len(lines) > 0 {
		hub.Seed(entriesFromLines(lines))
	}

	hub.SetOnMessage(func(client *Client, req *logstream.ReplayRequest) {
		// Replay is answered even when empty so the viewer knows the gap
		// is closed
		s.handler.SendReplay(client, hub.ReplaySince(req.LastTimestamp))
	})
	hub.SetOnClose(func() {
		// The agent keeps producing and the window keeps filling with no
		// viewers attached
		log.Printf("All viewers detached from agent %s, retention continues", agentID)
	})

	return hub
}

// Publish persists a batch of output lines for an agent and broadcasts them
// to attached viewers. Lines with a zero timestamp are stamped at receipt.
func (s *Service) Publish(ctx context.Context, agentID string, lines []model.LogLine) error {
	exists, err := s.repo.Exists(ctx, agentID)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrAgentNotFound
	}

	now := time.Now().UnixMilli()
	for i := range lines {
		if lines[i].Timestamp == 0 {
			lines[i].Timestamp = now
		}
	}

	if err := s.repo.AppendLogs(ctx, agentID, lines); err != nil {
		return err
	}
	if err := s.repo.PruneLogs(ctx, agentID, retainedLines); err != nil {
		return err
	}

	s.ensureHub(ctx, agentID).Publish(entriesFromLines(lines))
	return nil
}

// BroadcastError sends a non-fatal error frame to every viewer of an agent.
func (s *Service) BroadcastError(agentID string, errMsg string) {
	hub := s.hubManager.Get(agentID)
	if hub == nil {
		return
	}
	hub.BroadcastFrame(&logstream.Frame{
		Type:    logstream.FrameTypeError,
		Message: errMsg,
	})
}

// DetachAgent closes all viewer connections for an agent and drops its hub.
// Called when the agent is deleted.
func (s *Service) DetachAgent(agentID string) {
	s.hubManager.Remove(agentID)
}

// ClientCount returns the number of viewers attached to an agent.
func (s *Service) ClientCount(agentID string) int {
	hub := s.hubManager.Get(agentID)
	if hub == nil {
		return 0
	}
	return hub.ClientCount()
}

// Close closes all viewer connections and cleans up resources.
func (s *Service) Close() {
	s.hubManager.Close()
}

func entriesFromLines(lines []model.LogLine) []logstream.Entry {
	entries := make([]logstream.Entry, len(lines))
	for i, l := range lines {
		entries[i] = logstream.Entry{
			Content:   l.Content,
			Timestamp: l.Timestamp,
			Stream:    l.Stream,
		}
	}
	return entries
}
