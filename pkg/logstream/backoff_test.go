package logstream

import (
	"testing"
	"time"
)

func TestBackoff_Step(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 30 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{6, 30 * time.Second},
		{-1, 1 * time.Second}, // clamped to attempt 0
		{100, 30 * time.Second},
	}
	for _, c := range cases {
		if got := b.Step(c.attempt); got != c.want {
			t.Errorf("Step(%d): expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestBackoff_StepOverflow(t *testing.T) {
	b := Backoff{Base: time.Hour, Cap: 24 * time.Hour}

	// Shifts large enough to overflow time.Duration clamp to Cap
	for _, attempt := range []int{40, 62, 63, 1000} {
		if got := b.Step(attempt); got != b.Cap {
			t.Errorf("Step(%d): expected cap %v, got %v", attempt, b.Cap, got)
		}
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 30 * time.Second}

	// Jitter keeps every delay inside [step/2, step)
	for attempt := 0; attempt < 8; attempt++ {
		step := b.Step(attempt)
		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			if d < step/2 || d >= step {
				t.Fatalf("Delay(%d) = %v outside [%v, %v)", attempt, d, step/2, step)
			}
		}
	}
}
