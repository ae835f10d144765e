package bests

import (
	"fmt"

	"openf1companion/pkg/openf1"
)

type SectorKey string

const (
	Sector1 SectorKey = "sector1"
	Sector2 SectorKey = "sector2"
	Sector3 SectorKey = "sector3"
	LapTime SectorKey = "lap"
)

var Keys = []SectorKey{Sector1, Sector2, Sector3, LapTime}

// Best names a newly-set session best by a tracked driver.
type Best struct {
	Sector       SectorKey `json:"sector"`
	DriverNumber int       `json:"driverNumber"`
	Value        float64   `json:"value"`
}

// Tracker maintains the fastest valid sector and lap times seen across
// all competitors during one polling session. Bests are recomputed from
// the full lap set each poll because upstream data can be revised; the
// table is monotone per key within a session. Tracker owns per-session
// mutable state and must be Reset on driver or session change.
type Tracker struct {
	best     map[SectorKey]float64
	notified map[string]struct{}
	primed   bool
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

func (t *Tracker) Reset() {
	t.best = make(map[SectorKey]float64)
	t.notified = make(map[string]struct{})
	t.primed = false
}

// Best returns the current session best for a key, if one is known.
func (t *Tracker) Best(key SectorKey) (float64, bool) {
	v, ok := t.best[key]
	return v, ok
}

// Update recomputes the global minima from every competitor's laps and
// returns the bests newly set by the tracked drivers. The very first
// poll only establishes the baseline and never notifies; re-polling
// identical data never re-notifies, keyed by (sector, driver, exact
// value).
func (t *Tracker) Update(allLaps []openf1.Lap, trackedDrivers []int) []Best {
	globals := make(map[SectorKey]float64)
	for _, lap := range allLaps {
		if lap.IsPitOutLap {
			continue
		}
		for key, v := range sectorValues(lap) {
			if v <= 0 {
				continue
			}
			if cur, ok := globals[key]; !ok || v < cur {
				globals[key] = v
			}
		}
	}

	var hits []Best
	if t.primed {
		tracked := make(map[int]bool, len(trackedDrivers))
		for _, d := range trackedDrivers {
			tracked[d] = true
		}
		for _, lap := range allLaps {
			if lap.IsPitOutLap || !tracked[lap.DriverNumber] {
				continue
			}
			for key, v := range sectorValues(lap) {
				if v <= 0 {
					continue
				}
				global, ok := globals[key]
				if !ok || v > global {
					continue
				}
				// holding an existing best is not news; only a strict
				// improvement over the previous poll's minimum is
				prev, had := t.best[key]
				if had && v >= prev {
					continue
				}
				dedupe := fmt.Sprintf("%s|%d|%.3f", key, lap.DriverNumber, v)
				if _, done := t.notified[dedupe]; done {
					continue
				}
				t.notified[dedupe] = struct{}{}
				hits = append(hits, Best{
					Sector:       key,
					DriverNumber: lap.DriverNumber,
					Value:        v,
				})
			}
		}
	}

	t.best = globals
	t.primed = true
	return hits
}

func sectorValues(lap openf1.Lap) map[SectorKey]float64 {
	return map[SectorKey]float64{
		Sector1: lap.DurationSector1,
		Sector2: lap.DurationSector2,
		Sector3: lap.DurationSector3,
		LapTime: lap.LapDuration,
	}
}
