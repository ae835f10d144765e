package circuit

import "testing"

// twentyCorners lays corners on a 1000-unit grid so index jumps and
// geometric proximity can be controlled independently.
func twentyCorners() []Corner {
	corners := make([]Corner, 20)
	for i := range corners {
		corners[i] = Corner{
			Number:        i + 1,
			TrackPosition: Point{X: float64(i) * 1000.0, Y: 0},
		}
	}
	return corners
}

func TestNearestCorner(t *testing.T) {
	corners := twentyCorners()

	c, ok := NearestCorner(Point{X: 2100, Y: 50}, corners)
	if !ok {
		t.Fatal("expected a corner within range")
	}
	if c.Number != 3 {
		t.Errorf("nearest corner = %d, want 3", c.Number)
	}

	if _, ok := NearestCorner(Point{X: 2500, Y: 0}, corners); ok {
		t.Error("a point 500 units from everything must not match")
	}

	if _, ok := NearestCorner(Point{}, nil); ok {
		t.Error("no corners means no match")
	}
}

func TestCornerTrackerForwardProgress(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker

	// first fix seeds the state
	if got, ok := tracker.Update(Point{X: 4000, Y: 10}, corners); !ok || got != 5 {
		t.Fatalf("got (%d, %v), want corner 5", got, ok)
	}
	// one step forward is normal progress
	if got, _ := tracker.Update(Point{X: 5000, Y: 10}, corners); got != 6 {
		t.Errorf("got corner %d, want 6", got)
	}
}

func TestCornerTrackerRejectsDistantJump(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker
	tracker.Update(Point{X: 4000, Y: 0}, corners) // corner 5

	// nearest is corner 15 but the car is 150 units off it: an index
	// jump of 10 with no unambiguous fix keeps the previous corner
	if got, _ := tracker.Update(Point{X: 14000, Y: 150}, corners); got != 5 {
		t.Errorf("got corner %d, want previous corner 5 retained", got)
	}
}

func TestCornerTrackerAcceptsJumpWhenOnTopOfCorner(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker
	tracker.Update(Point{X: 4000, Y: 0}, corners) // corner 5

	if got, _ := tracker.Update(Point{X: 14000, Y: 50}, corners); got != 15 {
		t.Errorf("got corner %d, want 15 when within 100 units", got)
	}
}

func TestCornerTrackerWrapAround(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker
	tracker.Update(Point{X: 18000, Y: 0}, corners) // corner 19

	// 19 -> 1 is a wrapped distance of 2: normal progress across the
	// start line
	if got, _ := tracker.Update(Point{X: 0, Y: 120}, corners); got != 1 {
		t.Errorf("got corner %d, want 1 across the line", got)
	}
}

func TestCornerTrackerHoldsThroughStraights(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker
	tracker.Update(Point{X: 4000, Y: 0}, corners)

	// far from every corner: displayed corner is retained
	if got, ok := tracker.Update(Point{X: 4500, Y: 9000}, corners); !ok || got != 5 {
		t.Errorf("got (%d, %v), want corner 5 retained", got, ok)
	}
}

func TestCornerTrackerReset(t *testing.T) {
	corners := twentyCorners()
	var tracker CornerTracker
	tracker.Update(Point{X: 4000, Y: 0}, corners)

	tracker.Reset()
	if _, ok := tracker.Active(); ok {
		t.Error("reset tracker must have no active corner")
	}
	// after a driver switch the first fix seeds fresh state
	if got, _ := tracker.Update(Point{X: 14000, Y: 0}, corners); got != 15 {
		t.Errorf("got corner %d, want 15 after reset", got)
	}
}
