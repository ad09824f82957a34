package logstream

import (
	"bytes"
	"encoding/json"
)

// Frame type discriminators shared by the client and the stream server.
const (
	FrameTypeError      = "error"
	FrameTypeSubscribed = "subscribed"
	FrameTypeReplay     = "replay"
	FrameTypeHistory    = "history"
	FrameTypeLog        = "log"
	FrameTypeOutput     = "output"
)

// CloseAgentNotFound is the reserved WebSocket close code signaling that the
// requested agent does not exist. A session closed with this code is
// terminal: the client never schedules another retry for the agent.
const CloseAgentNotFound = 4404

// Entry is one log entry on the wire, carried inside replay and history
// frames and inside line-array batches.
type Entry struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Stream    string `json:"stream,omitempty"`
}

// Frame is the JSON envelope exchanged with the stream server. Which fields
// are meaningful depends on Type; unused fields are omitted on the wire.
type Frame struct {
	Type      string   `json:"type"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	Content   string   `json:"content,omitempty"`
	Data      string   `json:"data,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Stream    string   `json:"stream,omitempty"`
	Entries   []Entry  `json:"entries,omitempty"`
	Lines     []string `json:"lines,omitempty"`
}

// ReplayRequest is sent to the server on reconnect to request the entries
// the client may have missed while disconnected.
type ReplayRequest struct {
	Type          string `json:"type"`
	Agent         string `json:"agent"`
	LastTimestamp int64  `json:"lastTimestamp"`
}

// routed is the router's normalized view of one inbound frame.
type routed struct {
	errMsg  string  // non-empty for error frames
	ack     bool    // subscription acknowledgement, no buffer effect
	entries []Entry // normalized lines; Timestamp 0 means "stamp at receipt"
	payload bool    // true when the frame carried real output
}

// batchLine tolerates the field aliases producers use for line objects in
// array batches and log/output frames.
type batchLine struct {
	Content   string `json:"content"`
	Data      string `json:"data"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Stream    string `json:"stream"`
}

func (l batchLine) text() string {
	switch {
	case l.Content != "":
		return l.Content
	case l.Data != "":
		return l.Data
	default:
		return l.Message
	}
}

// classifyFrame maps one raw transport frame onto the router's normalized
// form. A bare JSON string is a single stdout line; anything that fails to
// parse is passed through verbatim as plain text rather than dropped.
func classifyFrame(raw []byte) routed {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return routed{}
	}

	switch trimmed[0] {
	case '{':
		var f Frame
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return plainText(raw)
		}
		return classifyTyped(trimmed, f)
	case '[':
		var batch []batchLine
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return plainText(raw)
		}
		out := routed{}
		for _, l := range batch {
			out.entries = append(out.entries, Entry{
				Content:   l.text(),
				Timestamp: l.Timestamp,
				Stream:    l.Stream,
			})
		}
		out.payload = len(out.entries) > 0
		return out
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return plainText(raw)
		}
		return routed{entries: []Entry{{Content: s}}, payload: true}
	default:
		return plainText(raw)
	}
}

func classifyTyped(raw []byte, f Frame) routed {
	switch f.Type {
	case FrameTypeError:
		msg := f.Message
		if msg == "" {
			msg = f.Error
		}
		if msg == "" {
			msg = "unknown server error"
		}
		return routed{errMsg: msg}

	case FrameTypeSubscribed:
		return routed{ack: true}

	case FrameTypeReplay:
		return routed{entries: f.Entries, payload: len(f.Entries) > 0}

	case FrameTypeHistory:
		// History normally carries bare strings stamped at receipt time;
		// producers with real timestamps send entries instead.
		if len(f.Entries) > 0 {
			return routed{entries: f.Entries, payload: true}
		}
		out := routed{}
		for _, s := range f.Lines {
			out.entries = append(out.entries, Entry{Content: s})
		}
		out.payload = len(out.entries) > 0
		return out

	case FrameTypeLog, FrameTypeOutput:
		line := batchLine{
			Content:   f.Content,
			Data:      f.Data,
			Message:   f.Message,
			Timestamp: f.Timestamp,
			Stream:    f.Stream,
		}
		return routed{
			entries: []Entry{{Content: line.text(), Timestamp: line.Timestamp, Stream: line.Stream}},
			payload: true,
		}

	default:
		// Unknown discriminator: fall back to plain text so nothing is
		// silently lost.
		return plainText(raw)
	}
}

func plainText(raw []byte) routed {
	return routed{entries: []Entry{{Content: string(raw)}}, payload: true}
}
