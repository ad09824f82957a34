// Package logstream implements the live log-streaming client used by the
// dashboard to follow an agent's terminal output over WebSocket.
//
// The package implements:
//   - Client: connection supervisor with an explicit state machine
//     (Idle, Connecting, Open, Reconnecting, Disconnected, Error)
//   - ReplayFilter: last-seen-timestamp tracking and content-hash
//     deduplication across history, replay and live delivery paths
//   - LineBuffer: bounded append-only buffer of normalized log lines
//   - Backoff: capped exponential reconnect delays with jitter
//
// Key behaviors:
//   - Reconnects automatically after unclean closes, with capped
//     exponential backoff and jitter
//   - Requests a gap-filling replay on every reconnect after the first
//     successful session, keyed by the highest timestamp seen so far
//   - Collapses duplicate deliveries of the same line arriving via
//     history, replay and live frames
//   - Treats close code 4404 (agent not found) as terminal and never
//     retries against a nonexistent agent
//   - Resume() lets the embedding UI signal that the page regained
//     visibility, forcing a fresh connection attempt with a reset
//     attempt counter
package logstream
