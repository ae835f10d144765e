package clock

import "time"

// SessionClock is the single source of "now" for a polling cycle. Every
// derivation in one cycle must use a single value read from it; callers
// read once and pass the instant down.
type SessionClock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewSystemClock returns a clock backed by the real wall clock.
func NewSystemClock() SessionClock {
	return systemClock{}
}

// SimulatedClock advances in real time but starts at a fixed origin, so
// the whole service can replay a historical session as if it were live.
type SimulatedClock struct {
	origin  time.Time
	started time.Time
}

// NewSimulatedClock returns a clock that reads origin at the moment of
// construction and keeps pace with the wall clock from there.
func NewSimulatedClock(origin time.Time) *SimulatedClock {
	return &SimulatedClock{
		origin:  origin,
		started: time.Now(),
	}
}

func (c *SimulatedClock) Now() time.Time {
	return c.origin.Add(time.Since(c.started))
}
