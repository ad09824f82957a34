package logstream

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Defaults applied by New for zero-valued options.
const (
	DefaultMaxLines    = 5000
	DefaultMaxHashes   = 2000
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second

	dialTimeout = 10 * time.Second
)

var (
	// ErrAgentRequired is returned by New when no agent name is given.
	ErrAgentRequired = errors.New("agent name is required")

	// ErrEndpointRequired is returned by New when neither an endpoint URL
	// nor a custom dialer is given.
	ErrEndpointRequired = errors.New("stream endpoint is required")

	// ErrAgentNotFound is recorded when the server closes the stream with
	// the reserved agent-not-found code.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrRetriesExhausted is recorded when the reconnect attempt limit is
	// reached without a successful open.
	ErrRetriesExhausted = errors.New("reconnect timed out: retry attempts exhausted")
)

// ServerError is a non-fatal application error reported by the server over
// an open stream. It is surfaced through Client.Err without closing the
// connection.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server reported: " + e.Message
}

// Conn is the transport used by the Client. *websocket.Conn satisfies it;
// tests substitute in-memory implementations.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens one transport session to the stream endpoint.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

func defaultDialer(ctx context.Context, endpoint string) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Client. Agent is required; Endpoint is required
// unless a custom Dialer is supplied. Zero values for limits and delays
// take the package defaults.
type Options struct {
	// Agent is the logical name of the stream's subject.
	Agent string

	// Endpoint is the full WebSocket URL of the agent's log stream.
	Endpoint string

	// MaxLines bounds the visible line buffer. Default 5000.
	MaxLines int

	// DisableAutoConnect stops New from connecting immediately.
	DisableAutoConnect bool

	// DisableReconnect stops the client from retrying after a lost
	// connection.
	DisableReconnect bool

	// MaxReconnectAttempts caps consecutive reconnect attempts.
	// 0 means unbounded.
	MaxReconnectAttempts int

	// BackoffBase and BackoffCap shape the reconnect delay curve.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// MaxHashes bounds the dedup hash set. Default 2000.
	MaxHashes int

	// Dialer overrides the transport constructor. Default: gorilla
	// websocket dialer against Endpoint.
	Dialer Dialer

	// OnLine, when set, is invoked for every line appended to the buffer,
	// after the append. Called outside the client's lock.
	OnLine func(Line)

	// OnStateChange, when set, is invoked on every connection state
	// transition. Called outside the client's lock.
	OnStateChange func(ConnState)
}

func (o *Options) applyDefaults() {
	if o.MaxLines <= 0 {
		o.MaxLines = DefaultMaxLines
	}
	if o.MaxHashes <= 0 {
		o.MaxHashes = DefaultMaxHashes
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	if o.Dialer == nil {
		o.Dialer = defaultDialer
	}
}
