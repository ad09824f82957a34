// Package stream serves live agent log output over WebSocket.
//
// Each agent gets one Hub that fans frames out to every attached viewer and
// retains a window of recent entries. A viewer that attaches receives a
// subscription acknowledgement followed by the retained history; a viewer
// that reconnects can send a replay request carrying its last seen timestamp
// and receives the entries it missed. Attaching to an unknown agent closes
// the socket with the reserved agent-not-found code.
package stream
