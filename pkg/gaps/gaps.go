package gaps

import (
	"fmt"
	"math"
	"strings"
	"time"

	"openf1companion/pkg/laps"
	"openf1companion/pkg/openf1"
	"openf1companion/pkg/queues"
	"openf1companion/pkg/timeseries"
)

const (
	// MaxSnapshots bounds the rolling gap history window.
	MaxSnapshots = 12
	// MaxEvents bounds the rolling overtake log.
	MaxEvents = 20

	// drsWindow is the gap at or under which DRS is available.
	drsWindow = 1.0
	// proximityThreshold: the driver was close enough to contest the
	// position. discontinuityThreshold: the gap changed enough to be an
	// on-track event rather than measurement noise. Both are calibrated
	// against observed interval feeds and must not drift.
	proximityThreshold     = 1.5
	discontinuityThreshold = 2.0
)

// Snapshot is one derived point of gap history. Index orders snapshots
// within the window; it is not a wall-clock value.
type Snapshot struct {
	Index       int     `json:"index"`
	Gap         float64 `json:"gap"`
	ClosingRate float64 `json:"closingRate"`
	DRSActive   bool    `json:"drsActive"`
}

type EventType string

const (
	Attacking EventType = "ATTACKING"
	Defending EventType = "DEFENDING"
)

// Event is a discrete overtake or position-defence detection.
type Event struct {
	ID           string    `json:"id"`
	Lap          int       `json:"lap"`
	Description  string    `json:"description"`
	Type         EventType `json:"type"`
	DriverNumber int       `json:"driverNumber"`
}

// usable filters the window down to samples that carry a gap value and
// keeps only the most recent MaxSnapshots of them.
func usable(samples []openf1.Interval) []openf1.Interval {
	filtered := make([]openf1.Interval, 0, len(samples))
	for _, s := range samples {
		if s.Interval != nil {
			filtered = append(filtered, s)
		}
	}
	return timeseries.Tail(filtered, MaxSnapshots)
}

// Snapshots converts the interval feed into the rolling gap history:
// one snapshot per usable sample, with the closing rate against the
// previous sample (positive means closing in) and the DRS flag.
func Snapshots(samples []openf1.Interval) []Snapshot {
	window := usable(samples)
	out := make([]Snapshot, 0, len(window))
	for i, s := range window {
		gap := math.Abs(*s.Interval)
		rate := 0.0
		if i > 0 {
			rate = *window[i-1].Interval - *s.Interval
		}
		out = append(out, Snapshot{
			Index:       i,
			Gap:         gap,
			ClosingRate: rate,
			DRSActive:   gap <= drsWindow,
		})
	}
	return out
}

// DetectOvertakes finds gap discontinuities in the interval window and
// classifies them. A jump from close quarters to a clearly larger gap
// means the tracked driver passed the car ahead (ATTACKING); a collapse
// from a clear gap straight into close quarters means the tracked
// driver was passed (DEFENDING). Detection is gap-only: position-order
// data is not available at this layer, so a pit-stop-induced jump can
// still register as an event.
func DetectOvertakes(samples []openf1.Interval, lapFeed []openf1.Lap, driverNumber, fallbackLap int) []Event {
	window := usable(samples)
	var events []Event
	for i := 1; i < len(window); i++ {
		prev, curr := window[i-1], window[i]
		delta := *curr.Interval - *prev.Interval

		var kind EventType
		switch {
		case *prev.Interval <= proximityThreshold && delta > discontinuityThreshold:
			kind = Attacking
		case *prev.Interval > discontinuityThreshold && delta < -discontinuityThreshold && *curr.Interval <= proximityThreshold:
			kind = Defending
		default:
			continue
		}

		lap := laps.CurrentLap(lapFeed, curr.Date, fallbackLap)
		events = append(events, Event{
			ID:           eventID(curr.Date, driverNumber),
			Lap:          lap,
			Description:  describe(kind, lap, *curr.Interval),
			Type:         kind,
			DriverNumber: driverNumber,
		})
	}
	return events
}

func eventID(at time.Time, driverNumber int) string {
	return fmt.Sprintf("%d-%d", at.UnixMilli(), driverNumber)
}

func describe(kind EventType, lap int, gap float64) string {
	if kind == Attacking {
		return fmt.Sprintf("Lap %d: move completed on the car ahead, gap resets to %.1fs", lap, math.Abs(gap))
	}
	return fmt.Sprintf("Lap %d: position lost, now %.1fs behind the new car ahead", lap, math.Abs(gap))
}

// EventLog is the bounded rolling overtake log. Events are deduplicated
// by normalized description text before merging, guarding against the
// same discontinuity being re-derived from overlapping poll windows.
type EventLog struct {
	max    int
	events *queues.Queue[Event]
	seen   map[string]struct{}
}

func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = MaxEvents
	}
	return &EventLog{
		max:    max,
		events: queues.NewQueue[Event](),
		seen:   make(map[string]struct{}),
	}
}

// Merge appends events whose normalized description is not in the log
// yet and drops the oldest entries once over capacity. It returns the
// events that were actually added.
func (l *EventLog) Merge(events []Event) []Event {
	var added []Event
	for _, e := range events {
		key := normalize(e.Description)
		if _, dup := l.seen[key]; dup {
			continue
		}
		l.seen[key] = struct{}{}
		l.events.Push(e)
		added = append(added, e)
		for l.events.Len() > l.max {
			old := l.events.Pop()
			delete(l.seen, normalize(old.Description))
		}
	}
	return added
}

func (l *EventLog) Events() []Event {
	out := make([]Event, l.events.Len())
	copy(out, *l.events)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
