package circuit

const (
	// A car farther than 200 units from every corner is on a straight,
	// not "at" any corner. Squared distances avoid the sqrt.
	nearCornerRadiusSq = 200.0 * 200.0
	// A big jump in corner numbering is only believed when the car is
	// unambiguously at the new corner.
	jumpRadiusSq = 100.0 * 100.0
	// Corner-index steps up to this size count as normal forward
	// progress around the lap.
	maxIndexStep = 4
)

func distSq(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// NearestCorner returns the corner closest to pos, or false when the
// closest one is outside the 200-unit radius.
func NearestCorner(pos Point, corners []Corner) (Corner, bool) {
	best := -1
	bestD := 0.0
	for i, c := range corners {
		d := distSq(pos, c.TrackPosition)
		if best < 0 || d < bestD {
			best = i
			bestD = d
		}
	}
	if best < 0 || bestD > nearCornerRadiusSq {
		return Corner{}, false
	}
	return corners[best], true
}

// CornerTracker smooths the displayed corner for one tracked driver.
// Raw nearest-corner output flickers between corners that sit close
// together on the map but far apart in numbering; the tracker only
// follows jumps in numbering when the car is right on top of the new
// corner. State is scoped to a single driver and must be Reset when the
// tracked driver changes.
type CornerTracker struct {
	current   int
	hasActive bool
}

func (t *CornerTracker) Reset() {
	t.current = 0
	t.hasActive = false
}

// Active returns the corner currently displayed, if any.
func (t *CornerTracker) Active() (int, bool) {
	return t.current, t.hasActive
}

// Update feeds a fresh position through the hysteresis rule and returns
// the resulting displayed corner. When no corner qualifies at all the
// previous state is retained.
func (t *CornerTracker) Update(pos Point, corners []Corner) (int, bool) {
	fresh, ok := NearestCorner(pos, corners)
	if !ok {
		return t.current, t.hasActive
	}
	if !t.hasActive {
		t.current = fresh.Number
		t.hasActive = true
		return t.current, true
	}
	if wrappedIndexDistance(t.current, fresh.Number, len(corners)) <= maxIndexStep {
		t.current = fresh.Number
		return t.current, true
	}
	if distSq(pos, fresh.TrackPosition) <= jumpRadiusSq {
		t.current = fresh.Number
		return t.current, true
	}
	return t.current, true
}

// wrappedIndexDistance is the step count between two corner numbers on
// a circular track: the direct difference or the wrap-around one,
// whichever is smaller.
func wrappedIndexDistance(a, b, total int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if total > 0 && total-d < d {
		d = total - d
	}
	return d
}
