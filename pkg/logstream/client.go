package logstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// session is one underlying transport lifetime. Its flags live on the
// session value itself, never on the Client, so a rapid reconnect creating
// session N+1 cannot be confused with stale state from session N. Both
// flags are guarded by the owning Client's mutex.
type session struct {
	gen         uint64
	conn        Conn
	manualClose bool
	gotData     bool
}

// Client follows one agent's log stream. It owns the transport lifecycle,
// the reconnect policy, the replay/dedup state and the bounded line buffer.
// All exported methods are safe for concurrent use; consumers read the
// buffer through Lines, which returns a snapshot.
type Client struct {
	opts    Options
	backoff Backoff

	mu         sync.Mutex
	state      ConnState
	sess       *session
	gen        uint64
	attempts   int
	retryTimer *time.Timer
	noRetry    bool // agent-not-found close observed
	manualStop bool // Disconnect called; only Connect resumes
	lastErr    error
	buf        *LineBuffer
	filter     *ReplayFilter
	seq        int64
	epoch      int64
}

// notices collects callback work produced under the lock so it can be
// delivered after the lock is released.
type notices struct {
	lines []Line
	state *ConnState
}

// New creates a Client for one agent and, unless DisableAutoConnect is set,
// starts connecting immediately.
func New(opts Options) (*Client, error) {
	if opts.Agent == "" {
		return nil, ErrAgentRequired
	}
	if opts.Endpoint == "" && opts.Dialer == nil {
		return nil, ErrEndpointRequired
	}
	opts.applyDefaults()

	c := &Client{
		opts: opts,
		backoff: Backoff{
			Base: opts.BackoffBase,
			Cap:  opts.BackoffCap,
		},
		state:  StateIdle,
		buf:    NewLineBuffer(opts.MaxLines),
		filter: NewReplayFilter(opts.MaxHashes),
		epoch:  time.Now().UnixMilli(),
	}

	if !opts.DisableAutoConnect {
		c.Connect()
	}
	return c, nil
}

// Connect opens a new session. It is idempotent: a call while a session is
// open or opening is a no-op. A manual Connect clears the terminal
// agent-not-found suppression and the manual-stop latch.
func (c *Client) Connect() {
	var n notices
	c.mu.Lock()
	c.noRetry = false
	c.manualStop = false
	c.connectLocked(&n)
	c.mu.Unlock()
	c.deliver(n)
}

func (c *Client) connectLocked(n *notices) {
	if c.state == StateConnecting || c.state == StateOpen {
		return
	}
	if c.noRetry {
		return
	}
	c.stopRetryTimerLocked()

	c.gen++
	sess := &session{gen: c.gen}
	c.sess = sess
	c.setStateLocked(StateConnecting, n)

	go c.dialSession(sess)
}

// Disconnect tears down the current session and cancels any pending
// reconnect. It is idempotent. The session is marked manually closed before
// the transport is closed so its close event can never schedule a retry.
func (c *Client) Disconnect() {
	var n notices
	c.mu.Lock()
	c.stopRetryTimerLocked()
	sess := c.sess
	if sess != nil {
		sess.manualClose = true
		c.sess = nil
	}
	c.manualStop = true
	c.setStateLocked(StateDisconnected, &n)
	c.mu.Unlock()

	if sess != nil && sess.conn != nil {
		sess.conn.Close()
	}
	c.deliver(n)
}

// Resume signals that the embedding page regained visibility. If the
// transport is not open or opening, the attempt counter is reset and a
// fresh connection attempt starts. It never revives a stream stopped by
// Disconnect or terminated by an agent-not-found close, and it never
// retries a construction failure; those need an explicit Connect.
func (c *Client) Resume() {
	var n notices
	c.mu.Lock()
	if c.noRetry || c.manualStop ||
		c.state == StateOpen || c.state == StateConnecting || c.state == StateError {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	c.connectLocked(&n)
	c.mu.Unlock()
	c.deliver(n)
}

// Clear empties the visible buffer and the dedup hash set without touching
// the connection or the replay cursor. Display-only.
func (c *Client) Clear() {
	c.mu.Lock()
	c.buf.Clear()
	c.filter.ClearHashes()
	c.mu.Unlock()
}

// AppendInput echoes locally produced input into the buffer so the log view
// can show what was sent to the agent. It does not touch the transport.
func (c *Client) AppendInput(content string) {
	var n notices
	c.mu.Lock()
	c.appendLocked(KindInput, content, time.Now().UnixMilli(), &n)
	c.mu.Unlock()
	c.deliver(n)
}

// --- read model ---

// Lines returns a copy of the visible line buffer in arrival order.
func (c *Client) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Snapshot()
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Connecting reports whether a session is being opened.
func (c *Client) Connecting() bool {
	return c.State() == StateConnecting
}

// Quality returns the coarse three-state indicator for the UI.
func (c *Client) Quality() Quality {
	return c.State().quality()
}

// Err returns the last recorded error, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Agent returns the logical name of the stream's subject.
func (c *Client) Agent() string {
	return c.opts.Agent
}

// --- session lifecycle ---

func (c *Client) dialSession(sess *session) {
	conn, err := c.opts.Dialer(context.Background(), c.opts.Endpoint)

	var n notices
	c.mu.Lock()
	if c.sess != sess {
		// Superseded or disconnected while dialing.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.dialFailedLocked(sess, err, &n)
		c.mu.Unlock()
		c.deliver(n)
		return
	}

	sess.conn = conn
	c.attempts = 0
	c.lastErr = nil
	replayFrom := c.filter.LastTimestamp()
	c.setStateLocked(StateOpen, &n)
	c.appendLocked(KindSystem, "Connected to "+c.opts.Agent, time.Now().UnixMilli(), &n)

	if replayFrom > 0 {
		// Request the gap immediately on open; ordering against new live
		// frames is not assumed, the dedup filter handles overlap.
		req := ReplayRequest{
			Type:          FrameTypeReplay,
			Agent:         c.opts.Agent,
			LastTimestamp: replayFrom,
		}
		if werr := conn.WriteJSON(req); werr != nil {
			c.lastErr = fmt.Errorf("replay request: %w", werr)
		}
	}
	c.mu.Unlock()
	c.deliver(n)

	c.readLoop(sess)
}

// dialFailedLocked classifies a failed transport construction. A handshake
// or network failure behaves like an unclean close that never carried data:
// it retries silently. Anything else (malformed URL, dialer misuse) is an
// error state the caller resolves by calling Connect again.
func (c *Client) dialFailedLocked(sess *session, err error, n *notices) {
	c.sess = nil
	if isTransientDialError(err) {
		c.closeCycleLocked(sess, websocket.CloseAbnormalClosure, n)
		return
	}
	c.lastErr = fmt.Errorf("open stream: %w", err)
	c.setStateLocked(StateError, n)
}

func isTransientDialError(err error) bool {
	if errors.Is(err, websocket.ErrBadHandshake) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) readLoop(sess *session) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			c.handleTransportClose(sess, err)
			return
		}
		c.handleFrame(sess, raw)
	}
}

func (c *Client) handleFrame(sess *session, raw []byte) {
	r := classifyFrame(raw)

	var n notices
	c.mu.Lock()
	if c.sess != sess {
		// Frame from a superseded session; its flags must not leak into
		// the current one.
		c.mu.Unlock()
		return
	}

	if r.errMsg != "" {
		// Server-reported application error: non-fatal, connection stays
		// open.
		c.lastErr = &ServerError{Message: r.errMsg}
		c.appendLocked(KindSystem, "Error: "+r.errMsg, time.Now().UnixMilli(), &n)
		c.mu.Unlock()
		c.deliver(n)
		return
	}
	if r.ack {
		c.mu.Unlock()
		return
	}

	if r.payload {
		sess.gotData = true
	}
	now := time.Now().UnixMilli()
	for _, e := range r.entries {
		ts := e.Timestamp
		if ts == 0 {
			ts = now
		}
		if !c.filter.Admit(e.Content, ts) {
			continue
		}
		kind := KindStdout
		if e.Stream == "stderr" {
			kind = KindStderr
		}
		c.appendLocked(kind, e.Content, ts, &n)
	}
	c.mu.Unlock()
	c.deliver(n)
}

// handleTransportClose classifies a close event for the session that
// produced it and decides whether a retry is scheduled. Stale sessions
// (already superseded or manually disconnected) are ignored entirely.
func (c *Client) handleTransportClose(sess *session, err error) {
	var n notices
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	sess.conn.Close()

	if sess.manualClose {
		c.setStateLocked(StateDisconnected, &n)
		c.mu.Unlock()
		c.deliver(n)
		return
	}

	code := websocket.CloseAbnormalClosure
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
	}
	c.closeCycleLocked(sess, code, &n)
	c.mu.Unlock()
	c.deliver(n)
}

// closeCycleLocked is the single transition site for a non-manual session
// close: sentinel handling, the user-visible drop notice, and retry
// scheduling.
func (c *Client) closeCycleLocked(sess *session, code int, n *notices) {
	if code == CloseAgentNotFound {
		// Terminal for this agent; retrying against a nonexistent target
		// would loop forever.
		c.noRetry = true
		c.lastErr = ErrAgentNotFound
		c.setStateLocked(StateDisconnected, n)
		return
	}

	retry := !c.opts.DisableReconnect && !c.noRetry &&
		(c.opts.MaxReconnectAttempts == 0 || c.attempts < c.opts.MaxReconnectAttempts)

	unclean := code != websocket.CloseNormalClosure && code != websocket.CloseGoingAway
	if unclean && sess.gotData {
		// Only sessions that delivered real output warrant a notice;
		// pre-handshake probes that die instantly are noise.
		if retry {
			c.appendLocked(KindSystem, "Connection lost. Reconnecting...", time.Now().UnixMilli(), n)
		} else {
			c.appendLocked(KindSystem, "Connection lost.", time.Now().UnixMilli(), n)
		}
	}

	if !retry {
		if !c.opts.DisableReconnect && c.opts.MaxReconnectAttempts > 0 &&
			c.attempts >= c.opts.MaxReconnectAttempts {
			c.lastErr = ErrRetriesExhausted
		}
		c.setStateLocked(StateDisconnected, n)
		return
	}

	delay := c.backoff.Delay(c.attempts)
	c.attempts++
	c.setStateLocked(StateReconnecting, n)
	c.retryTimer = time.AfterFunc(delay, c.retryFire)
}

func (c *Client) retryFire() {
	var n notices
	c.mu.Lock()
	if c.state == StateReconnecting {
		c.connectLocked(&n)
	}
	c.mu.Unlock()
	c.deliver(n)
}

func (c *Client) stopRetryTimerLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// --- internals ---

func (c *Client) setStateLocked(s ConnState, n *notices) {
	if c.state == s {
		return
	}
	c.state = s
	state := s
	n.state = &state
}

func (c *Client) appendLocked(kind LineKind, content string, ts int64, n *notices) {
	c.seq++
	line := Line{
		ID:        fmt.Sprintf("%d-%d", c.epoch, c.seq),
		Timestamp: ts,
		Content:   content,
		Kind:      kind,
		Source:    c.opts.Agent,
	}
	c.buf.Append(line)
	n.lines = append(n.lines, line)
}

// deliver fires the configured callbacks outside the lock.
func (c *Client) deliver(n notices) {
	if n.state != nil && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(*n.state)
	}
	if c.opts.OnLine != nil {
		for _, l := range n.lines {
			c.opts.OnLine(l)
		}
	}
}
