package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	if now.Before(before) {
		t.Errorf("Now() = %v, before %v", now, before)
	}
	if d := clock.Since(now.Add(-time.Second)); d < time.Second {
		t.Errorf("Since() = %v, want >= 1s", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(250 * time.Millisecond)
	if got := clock.Since(start); got != 250*time.Millisecond {
		t.Errorf("Since() = %v, want 250ms", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() = %v, want %v", clock.Now(), later)
	}
}

func TestOrReal(t *testing.T) {
	if _, ok := OrReal(nil).(RealClock); !ok {
		t.Error("OrReal(nil) should return RealClock")
	}
	mock := NewMockClock(time.Time{})
	if OrReal(mock) != Clock(mock) {
		t.Error("OrReal should return a non-nil clock unchanged")
	}
}
