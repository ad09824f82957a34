package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentview/console/pkg/logstream"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Viewers only send small
	// replay requests.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// AgentLookup reports whether an agent exists. Satisfied by the repository.
type AgentLookup interface {
	AgentExists(agentID string) bool
}

// Handler handles WebSocket connections for agent log streams.
type Handler struct {
	hubManager *HubManager
	lookup     AgentLookup
}

// NewHandler creates a new stream handler.
func NewHandler(hubManager *HubManager, lookup AgentLookup) *Handler {
	return &Handler{
		hubManager: hubManager,
		lookup:     lookup,
	}
}

// HandleConnection handles a new viewer connection for an agent. The HTTP
// connection is upgraded first even when the agent is unknown, so the
// reserved close code can be delivered over the socket.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, agentID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	if h.lookup != nil && !h.lookup.AgentExists(agentID) {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(logstream.CloseAgentNotFound, "agent not found")
		conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
		return nil
	}

	hub := h.hubManager.GetOrCreate(agentID)
	client := NewClient(hub, conn, agentID)
	hub.Register(client)

	// Acknowledge the subscription, then hand over the retained window
	h.sendFrame(client, &logstream.Frame{
		Type:    logstream.FrameTypeSubscribed,
		Message: agentID,
	})
	h.sendHistory(client, hub)

	go h.writePump(client)
	go h.readPump(client, hub)

	return nil
}

// sendHistory delivers the retained window to a freshly attached viewer.
func (h *Handler) sendHistory(client *Client, hub *Hub) {
	retained := hub.Retained()
	if len(retained) == 0 {
		return
	}

	h.sendFrame(client, &logstream.Frame{
		Type:    logstream.FrameTypeHistory,
		Entries: retained,
	})
}

// SendReplay answers a replay request with the entries after the viewer's
// cursor.
func (h *Handler) SendReplay(client *Client, entries []logstream.Entry) {
	h.sendFrame(client, &logstream.Frame{
		Type:    logstream.FrameTypeReplay,
		Entries: entries,
	})
}

// SendError sends a non-fatal error frame to one viewer.
func (h *Handler) SendError(client *Client, msg string) {
	h.sendFrame(client, &logstream.Frame{
		Type:    logstream.FrameTypeError,
		Message: msg,
	})
}

func (h *Handler) sendFrame(client *Client, f *logstream.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("Failed to marshal %s frame: %v", f.Type, err)
		return
	}
	client.Send(data)
}

// readPump pumps replay requests from the viewer connection to the hub.
func (h *Handler) readPump(client *Client, hub *Hub) {
	defer func() {
		hub.Unregister(client)
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var req logstream.ReplayRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("Failed to unmarshal replay request: %v", err)
			continue
		}
		if req.Type != logstream.FrameTypeReplay {
			h.SendError(client, "unsupported request type: "+req.Type)
			continue
		}

		hub.HandleMessage(client, &req)
	}
}

// writePump pumps frames from the hub to the viewer connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per WebSocket message so viewers can parse each
			// frame independently
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queuedMsg := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queuedMsg); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetUpgrader returns the WebSocket upgrader for custom configuration.
func GetUpgrader() *websocket.Upgrader {
	return &upgrader
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}
