package logstream

import (
	"fmt"
	"testing"
)

func TestNewLineBuffer(t *testing.T) {
	// Test with valid capacity
	b := NewLineBuffer(100)
	if b.Cap() != 100 {
		t.Errorf("expected capacity 100, got %d", b.Cap())
	}
	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}

	// Test with zero capacity (should default to 1)
	b = NewLineBuffer(0)
	if b.Cap() != 1 {
		t.Errorf("expected capacity 1 for zero input, got %d", b.Cap())
	}

	// Test with negative capacity (should default to 1)
	b = NewLineBuffer(-5)
	if b.Cap() != 1 {
		t.Errorf("expected capacity 1 for negative input, got %d", b.Cap())
	}
}

func TestLineBuffer_Append(t *testing.T) {
	b := NewLineBuffer(3)

	b.Append(Line{Content: "a"})
	b.Append(Line{Content: "b"})
	if b.Len() != 2 {
		t.Errorf("expected length 2, got %d", b.Len())
	}

	got := b.Snapshot()
	if got[0].Content != "a" || got[1].Content != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestLineBuffer_AppendOverflow(t *testing.T) {
	b := NewLineBuffer(3)

	for i := 0; i < 5; i++ {
		b.Append(Line{Content: fmt.Sprintf("line-%d", i)})
	}

	if b.Len() != 3 {
		t.Errorf("expected length 3, got %d", b.Len())
	}

	// Oldest lines discarded, newest kept in arrival order
	got := b.Snapshot()
	want := []string{"line-2", "line-3", "line-4"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("expected %s at index %d, got %s", w, i, got[i].Content)
		}
	}
}

func TestLineBuffer_Snapshot(t *testing.T) {
	b := NewLineBuffer(10)

	// Snapshot of empty buffer
	if got := b.Snapshot(); got != nil {
		t.Errorf("expected nil for empty buffer, got %v", got)
	}

	b.Append(Line{Content: "hello"})
	got := b.Snapshot()
	if len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("expected [hello], got %v", got)
	}

	// Verify Snapshot returns a copy
	got[0].Content = "mutated"
	got2 := b.Snapshot()
	if got2[0].Content != "hello" {
		t.Errorf("Snapshot should return a copy, got %s", got2[0].Content)
	}
}

func TestLineBuffer_Clear(t *testing.T) {
	b := NewLineBuffer(10)
	b.Append(Line{Content: "hello"})

	b.Clear()

	if b.Len() != 0 {
		t.Errorf("expected length 0 after clear, got %d", b.Len())
	}
	if got := b.Snapshot(); got != nil {
		t.Errorf("expected nil after clear, got %v", got)
	}

	// Should be able to append again after clear
	b.Append(Line{Content: "world"})
	got := b.Snapshot()
	if len(got) != 1 || got[0].Content != "world" {
		t.Errorf("expected [world], got %v", got)
	}
}
