package gaps

import (
	"testing"
	"time"

	"openf1companion/pkg/openf1"
)

func f(v float64) *float64 { return &v }

func intervalFeed(t0 time.Time, values []*float64) []openf1.Interval {
	out := make([]openf1.Interval, len(values))
	for i, v := range values {
		out[i] = openf1.Interval{
			Date:     t0.Add(time.Duration(i) * 5 * time.Second),
			Interval: v,
		}
	}
	return out
}

func TestSnapshots(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	samples := intervalFeed(t0, []*float64{f(2.5), nil, f(1.8), f(0.9)})

	snaps := Snapshots(samples)
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots (null sample dropped), got %d", len(snaps))
	}
	if snaps[0].ClosingRate != 0 {
		t.Errorf("first snapshot closing rate = %v, want 0", snaps[0].ClosingRate)
	}
	if got := snaps[1].ClosingRate; got < 0.69 || got > 0.71 {
		t.Errorf("closing rate = %v, want 2.5-1.8 = 0.7", got)
	}
	if snaps[1].DRSActive {
		t.Error("1.8s gap must not flag DRS")
	}
	if !snaps[2].DRSActive {
		t.Error("0.9s gap must flag DRS")
	}
}

func TestSnapshotsWindowBounded(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	values := make([]*float64, 30)
	for i := range values {
		values[i] = f(float64(i))
	}
	snaps := Snapshots(intervalFeed(t0, values))
	if len(snaps) != MaxSnapshots {
		t.Fatalf("expected window of %d, got %d", MaxSnapshots, len(snaps))
	}
	if snaps[len(snaps)-1].Gap != 29 {
		t.Errorf("window should keep the most recent samples, last gap = %v", snaps[len(snaps)-1].Gap)
	}
}

func TestDetectOvertakesAttacking(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	samples := intervalFeed(t0, []*float64{f(1.2), f(1.1), f(3.6)})

	events := DetectOvertakes(samples, nil, 1, 12)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != Attacking {
		t.Errorf("type = %s, want ATTACKING", e.Type)
	}
	if e.Lap != 12 {
		t.Errorf("lap = %d, want fallback 12 with no lap feed", e.Lap)
	}
	if e.DriverNumber != 1 {
		t.Errorf("driver = %d, want 1", e.DriverNumber)
	}
	if e.ID == "" {
		t.Error("event must carry a synthetic id")
	}
}

func TestDetectOvertakesDefending(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	samples := intervalFeed(t0, []*float64{f(3.0), f(0.9)})

	events := DetectOvertakes(samples, nil, 44, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != Defending {
		t.Errorf("type = %s, want DEFENDING", events[0].Type)
	}
}

func TestDetectOvertakesThresholdEdges(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		values []*float64
		want   int
	}{
		{"delta exactly 2.0 is noise", []*float64{f(1.0), f(3.0)}, 0},
		{"prev over proximity cannot attack", []*float64{f(1.6), f(4.0)}, 0},
		{"defend delta -1.8 stays noise", []*float64{f(2.5), f(0.7)}, 0},
		{"defend must land in close quarters", []*float64{f(4.5), f(1.6)}, 0},
		{"steady closing emits nothing", []*float64{f(2.0), f(1.5), f(1.0), f(0.6)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := DetectOvertakes(intervalFeed(t0, tc.values), nil, 1, 1)
			if len(events) != tc.want {
				t.Errorf("got %d events, want %d", len(events), tc.want)
			}
		})
	}
}

func TestEventLogDeduplicatesByNormalizedText(t *testing.T) {
	log := NewEventLog(MaxEvents)
	first := log.Merge([]Event{{ID: "a", Description: "Lap 5: move completed"}})
	if len(first) != 1 {
		t.Fatalf("expected first merge to add 1, got %d", len(first))
	}
	// same text, case/whitespace variant, from a later overlapping poll
	second := log.Merge([]Event{{ID: "b", Description: "  lap 5: MOVE completed "}})
	if len(second) != 0 {
		t.Errorf("expected duplicate to be dropped, added %d", len(second))
	}
	if got := len(log.Events()); got != 1 {
		t.Errorf("log holds %d events, want 1", got)
	}
}

func TestEventLogDropsOldestPastCapacity(t *testing.T) {
	log := NewEventLog(3)
	for i := 0; i < 5; i++ {
		log.Merge([]Event{{Description: string(rune('a' + i))}})
	}
	events := log.Events()
	if len(events) != 3 {
		t.Fatalf("expected capped log of 3, got %d", len(events))
	}
	if events[0].Description != "c" {
		t.Errorf("oldest surviving event = %q, want \"c\"", events[0].Description)
	}
}

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		text string
		want Tier
	}{
		{"He sends it down the inside, overtake complete", Imminent},
		{"Gap now at 0.4s into the final sector", Imminent},
		{"Within DRS range on the back straight", DRSZone},
		{"Running 0.8s behind the Ferrari", DRSZone},
		{"Gap stable at 1.7 seconds", Building},
		{"Applying pressure lap after lap", Building},
		{"Comfortable cushion of 4.5s to the car behind", Monitoring},
		{"Both cars managing tyres for now", Monitoring},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := ClassifyTier(tc.text); got != tc.want {
				t.Errorf("ClassifyTier(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}
