package logstream

import (
	"encoding/binary"
	"hash/fnv"
)

// hashPrefixLen bounds the number of content bytes fed into the dedup hash,
// so hashing cost stays constant for very long lines.
const hashPrefixLen = 256

// ReplayFilter tracks the highest timestamp observed across all sessions of
// one agent and discards duplicate lines that arrive via more than one path
// (history dump, replay response, live frame).
//
// The hash set is capped: past the ceiling, the oldest half is evicted. Very
// old duplicates may therefore slip through again; only a recent replay
// window is realistically re-sent, so this is an accepted trade-off rather
// than a correctness bug.
//
// ReplayFilter is not safe for concurrent use; the owning Client serializes
// access.
type ReplayFilter struct {
	maxHashes int
	last      int64
	seen      map[uint64]struct{}
	order     []uint64
}

// NewReplayFilter creates a ReplayFilter whose hash set holds at most
// maxHashes entries. The ceiling must be greater than 0; if not, it
// defaults to 1.
func NewReplayFilter(maxHashes int) *ReplayFilter {
	if maxHashes <= 0 {
		maxHashes = 1
	}
	return &ReplayFilter{
		maxHashes: maxHashes,
		seen:      make(map[uint64]struct{}),
	}
}

// Admit reports whether the (content, timestamp) pair has not been seen
// before. On first sight it records the pair's hash and advances the
// last-seen timestamp; on a duplicate it reports false and changes nothing.
func (f *ReplayFilter) Admit(content string, timestamp int64) bool {
	key := lineHash(content, timestamp)
	if _, dup := f.seen[key]; dup {
		return false
	}

	f.seen[key] = struct{}{}
	f.order = append(f.order, key)
	if len(f.order) > f.maxHashes {
		f.evictOldest()
	}

	if timestamp > f.last {
		f.last = timestamp
	}
	return true
}

// evictOldest drops the oldest half of the recorded hashes.
func (f *ReplayFilter) evictOldest() {
	cut := len(f.order) / 2
	for _, key := range f.order[:cut] {
		delete(f.seen, key)
	}
	remaining := len(f.order) - cut
	copy(f.order, f.order[cut:])
	f.order = f.order[:remaining]
}

// LastTimestamp returns the highest timestamp admitted so far, or 0 if no
// timestamped line has been seen. It is the value sent with a replay
// request on reconnect.
func (f *ReplayFilter) LastTimestamp() int64 {
	return f.last
}

// ClearHashes empties the dedup hash set without touching the last-seen
// timestamp. Used by Client.Clear: the visible buffer is display state, the
// replay cursor is not.
func (f *ReplayFilter) ClearHashes() {
	f.seen = make(map[uint64]struct{})
	f.order = f.order[:0]
}

// Len returns the number of hashes currently recorded.
func (f *ReplayFilter) Len() int {
	return len(f.order)
}

func lineHash(content string, timestamp int64) uint64 {
	h := fnv.New64a()
	if len(content) > hashPrefixLen {
		content = content[:hashPrefixLen]
	}
	h.Write([]byte(content))
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(timestamp))
	h.Write(ts[:])
	return h.Sum64()
}
