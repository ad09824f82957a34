package stream

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentview/console/pkg/logstream"
)

// retainedLines bounds the per-agent replay window. Entries older than the
// most recent retainedLines are only reachable through the database.
const retainedLines = 1000

// Client represents one attached viewer connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	agentID string
	send    chan []byte
	mu      sync.Mutex
	closed  bool
}

// NewClient creates a new viewer client.
func NewClient(hub *Hub, conn *websocket.Conn, agentID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		agentID: agentID,
		send:    make(chan []byte, 256),
	}
}

// Send queues a frame to be sent to the viewer. A viewer that cannot keep
// up is dropped rather than allowed to stall the hub.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.closeLocked()
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// AgentID returns the agent this viewer is attached to.
func (c *Client) AgentID() string {
	return c.agentID
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Hub fans one agent's log frames out to all attached viewers and retains a
// bounded window of recent entries for history and replay.
type Hub struct {
	agentID  string
	clients  map[*Client]bool
	retained []logstream.Entry
	mu       sync.RWMutex

	onMessage func(client *Client, req *logstream.ReplayRequest)
	onClose   func()
}

// NewHub creates a new Hub for the given agent.
func NewHub(agentID string) *Hub {
	return &Hub{
		agentID: agentID,
		clients: make(map[*Client]bool),
	}
}

// AgentID returns the agent ID for this hub.
func (h *Hub) AgentID() string {
	return h.agentID
}

// SetOnMessage sets the callback for inbound replay requests.
func (h *Hub) SetOnMessage(callback func(client *Client, req *logstream.ReplayRequest)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = callback
}

// SetOnClose sets the callback for when all viewers detach.
func (h *Hub) SetOnClose(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = callback
}

// Register adds a viewer to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a viewer from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	clientCount := len(h.clients)
	onClose := h.onClose
	h.mu.Unlock()

	client.Close()

	// The agent keeps running and the hub keeps retaining output when no
	// viewers remain
	if clientCount == 0 && onClose != nil {
		onClose()
	}
}

// Seed preloads the retained window, oldest first. Used when a hub is
// created for an agent that already has persisted output.
func (h *Hub) Seed(entries []logstream.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) > retainedLines {
		entries = entries[len(entries)-retainedLines:]
	}
	h.retained = append(h.retained[:0], entries...)
}

// Publish retains the entries and broadcasts each one as a log frame.
func (h *Hub) Publish(entries []logstream.Entry) {
	if len(entries) == 0 {
		return
	}

	h.mu.Lock()
	h.retained = append(h.retained, entries...)
	if len(h.retained) > retainedLines {
		drop := len(h.retained) - retainedLines
		copy(h.retained, h.retained[drop:])
		h.retained = h.retained[:retainedLines]
	}
	h.mu.Unlock()

	for _, e := range entries {
		h.BroadcastFrame(&logstream.Frame{
			Type:      logstream.FrameTypeLog,
			Content:   e.Content,
			Timestamp: e.Timestamp,
			Stream:    e.Stream,
		})
	}
}

// ReplaySince returns the retained entries with a timestamp strictly
// greater than since, oldest first.
func (h *Hub) ReplaySince(since int64) []logstream.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []logstream.Entry
	for _, e := range h.retained {
		if e.Timestamp > since {
			out = append(out, e)
		}
	}
	return out
}

// Retained returns a copy of the full retained window, oldest first.
func (h *Hub) Retained() []logstream.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.retained) == 0 {
		return nil
	}
	out := make([]logstream.Entry, len(h.retained))
	copy(out, h.retained)
	return out
}

// Broadcast sends raw data to all attached viewers.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Send(data)
	}
}

// BroadcastFrame sends a frame to all attached viewers.
func (h *Hub) BroadcastFrame(f *logstream.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of attached viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HasClients returns true if any viewer is attached.
func (h *Hub) HasClients() bool {
	return h.ClientCount() > 0
}

// HandleMessage processes an inbound replay request from a viewer.
func (h *Hub) HandleMessage(client *Client, req *logstream.ReplayRequest) {
	h.mu.RLock()
	callback := h.onMessage
	h.mu.RUnlock()

	if callback != nil {
		callback(client, req)
	}
}

// Close closes all viewer connections and the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// HubManager manages the per-agent hubs.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.RWMutex
}

// NewHubManager creates a new HubManager.
func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

// GetOrCreate returns an existing hub or creates a new one for the agent.
func (m *HubManager) GetOrCreate(agentID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[agentID]; ok {
		return hub
	}

	hub := NewHub(agentID)
	m.hubs[agentID] = hub
	return hub
}

// Get returns the hub for the agent, or nil if not found.
func (m *HubManager) Get(agentID string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[agentID]
}

// Remove removes the hub for the agent.
func (m *HubManager) Remove(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[agentID]; ok {
		hub.Close()
		delete(m.hubs, agentID)
	}
}

// Close closes all hubs.
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, hub := range m.hubs {
		hub.Close()
	}
	m.hubs = make(map[string]*Hub)
}
