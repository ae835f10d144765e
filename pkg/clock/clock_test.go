package clock

import (
	"testing"
	"time"
)

func TestSimulatedClockAdvancesInRealTime(t *testing.T) {
	origin := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	c := NewSimulatedClock(origin)

	first := c.Now()
	if first.Before(origin) {
		t.Fatalf("simulated now %v is before origin %v", first, origin)
	}
	if first.Sub(origin) > time.Second {
		t.Fatalf("simulated now %v drifted %v from origin", first, first.Sub(origin))
	}

	time.Sleep(50 * time.Millisecond)
	second := c.Now()

	delta := second.Sub(first)
	if delta < 50*time.Millisecond || delta > 500*time.Millisecond {
		t.Errorf("expected roughly 50ms between reads, got %v", delta)
	}
}

func TestSimulatedClockIsMonotonic(t *testing.T) {
	c := NewSimulatedClock(time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC))
	prev := c.Now()
	for i := 0; i < 100; i++ {
		now := c.Now()
		if now.Before(prev) {
			t.Fatalf("clock went backwards: %v after %v", now, prev)
		}
		prev = now
	}
}

func TestSystemClockReturnsWallTime(t *testing.T) {
	c := NewSystemClock()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("system clock %v outside [%v, %v]", got, before, after)
	}
}
