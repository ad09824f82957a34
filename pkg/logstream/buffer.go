package logstream

// LineBuffer is a bounded append-only buffer of log lines. When the buffer
// is full, the oldest lines are discarded to make room for new ones, so it
// always holds the most recent maxLines entries in arrival order.
//
// LineBuffer is not safe for concurrent use; the owning Client serializes
// access and hands out copies via Snapshot.
type LineBuffer struct {
	lines    []Line
	maxLines int
}

// NewLineBuffer creates a LineBuffer holding at most maxLines entries.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewLineBuffer(maxLines int) *LineBuffer {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &LineBuffer{
		lines:    make([]Line, 0, maxLines),
		maxLines: maxLines,
	}
}

// Append adds a line, discarding the oldest entries if the buffer is full.
func (b *LineBuffer) Append(line Line) {
	if len(b.lines) >= b.maxLines {
		drop := len(b.lines) - b.maxLines + 1
		copy(b.lines, b.lines[drop:])
		b.lines = b.lines[:b.maxLines-1]
	}
	b.lines = append(b.lines, line)
}

// Snapshot returns a copy of the buffered lines in arrival order.
// The returned slice is safe to retain and read without synchronization.
func (b *LineBuffer) Snapshot() []Line {
	if len(b.lines) == 0 {
		return nil
	}
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Clear removes all buffered lines.
func (b *LineBuffer) Clear() {
	b.lines = b.lines[:0]
}

// Len returns the current number of buffered lines.
func (b *LineBuffer) Len() int {
	return len(b.lines)
}

// Cap returns the maximum number of lines the buffer holds.
func (b *LineBuffer) Cap() int {
	return b.maxLines
}
