package logstream

// LineKind classifies a log line.
type LineKind string

const (
	KindStdout LineKind = "stdout"
	KindStderr LineKind = "stderr"
	KindSystem LineKind = "system"
	KindInput  LineKind = "input"
)

// Line is one normalized unit of agent output.
//
// ID is unique within the owning Client and stable for the line's lifetime;
// it exists for rendering keys only and carries no ordering guarantee.
// Timestamp is the producer-supplied time when present, otherwise the client
// receipt time, in integer milliseconds. Content is the raw text and may
// contain terminal control sequences; this package does not sanitize.
type Line struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Content   string   `json:"content"`
	Kind      LineKind `json:"kind"`
	Source    string   `json:"source"`
}
