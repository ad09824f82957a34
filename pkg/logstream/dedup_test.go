package logstream

import (
	"fmt"
	"strings"
	"testing"
)

func TestReplayFilter_Admit(t *testing.T) {
	f := NewReplayFilter(100)

	if !f.Admit("hello", 10) {
		t.Error("first sight should be admitted")
	}
	if f.Admit("hello", 10) {
		t.Error("exact duplicate should be rejected")
	}

	// Same content at a different timestamp is a distinct line
	if !f.Admit("hello", 11) {
		t.Error("same content with new timestamp should be admitted")
	}

	// Different content at the same timestamp is a distinct line
	if !f.Admit("world", 11) {
		t.Error("new content with same timestamp should be admitted")
	}
}

func TestReplayFilter_LastTimestamp(t *testing.T) {
	f := NewReplayFilter(100)

	if f.LastTimestamp() != 0 {
		t.Errorf("expected 0 before any line, got %d", f.LastTimestamp())
	}

	f.Admit("a", 100)
	f.Admit("b", 300)
	if f.LastTimestamp() != 300 {
		t.Errorf("expected 300, got %d", f.LastTimestamp())
	}

	// Out-of-order timestamps never move the cursor backwards
	f.Admit("c", 200)
	if f.LastTimestamp() != 300 {
		t.Errorf("expected 300 after out-of-order line, got %d", f.LastTimestamp())
	}

	// Rejected duplicates leave the cursor alone
	f.Admit("b", 300)
	if f.LastTimestamp() != 300 {
		t.Errorf("expected 300 after duplicate, got %d", f.LastTimestamp())
	}
}

func TestReplayFilter_ClearHashes(t *testing.T) {
	f := NewReplayFilter(100)
	f.Admit("a", 100)
	f.Admit("b", 200)

	f.ClearHashes()

	if f.Len() != 0 {
		t.Errorf("expected 0 hashes after clear, got %d", f.Len())
	}
	// The replay cursor survives a clear
	if f.LastTimestamp() != 200 {
		t.Errorf("expected cursor 200 after clear, got %d", f.LastTimestamp())
	}
	// Previously seen lines are admitted again once their hash is gone
	if !f.Admit("a", 100) {
		t.Error("expected line to be admitted after clear")
	}
}

func TestReplayFilter_Eviction(t *testing.T) {
	f := NewReplayFilter(10)

	for i := 0; i < 11; i++ {
		f.Admit(fmt.Sprintf("line-%d", i), int64(i))
	}

	// Crossing the ceiling drops the oldest half
	if f.Len() != 6 {
		t.Errorf("expected 6 hashes after eviction, got %d", f.Len())
	}

	// Evicted entries are admitted again, surviving ones are still rejected
	if !f.Admit("line-0", 0) {
		t.Error("expected evicted line to be admitted again")
	}
	if f.Admit("line-10", 10) {
		t.Error("expected surviving line to still be rejected")
	}
}

func TestReplayFilter_LongContentPrefix(t *testing.T) {
	f := NewReplayFilter(100)

	// Lines identical in their first 256 bytes hash the same
	base := strings.Repeat("x", hashPrefixLen)
	if !f.Admit(base+"-tail-one", 50) {
		t.Error("first long line should be admitted")
	}
	if f.Admit(base+"-tail-two", 50) {
		t.Error("long line differing only past the prefix should collide")
	}

	// A difference inside the prefix still distinguishes them
	if !f.Admit("y"+base, 50) {
		t.Error("long line differing inside the prefix should be admitted")
	}
}
