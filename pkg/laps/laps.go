package laps

import (
	"time"

	"openf1companion/pkg/openf1"
	"openf1companion/pkg/timeseries"
)

type Compound string

const (
	Soft         Compound = "SOFT"
	Medium       Compound = "MEDIUM"
	Hard         Compound = "HARD"
	Intermediate Compound = "INTERMEDIATE"
	Wet          Compound = "WET"
	Unknown      Compound = "UNKNOWN"
)

// NormalizeCompound maps the upstream compound string onto the known
// set. Missing or unrecognised values fall back to UNKNOWN; that is a
// data-quality default, not an error.
func NormalizeCompound(s string) Compound {
	switch Compound(s) {
	case Soft, Medium, Hard, Intermediate, Wet:
		return Compound(s)
	default:
		return Unknown
	}
}

// CurrentLap resolves which lap is under way at cutoff: the last lap
// whose date_start is at or before it. The fallback is caller-supplied
// (typically the configured starting lap); there is no implicit
// default.
func CurrentLap(records []openf1.Lap, cutoff time.Time, fallback int) int {
	lap, ok := timeseries.LatestAtOrBefore(records, cutoff, func(l openf1.Lap) time.Time {
		return l.DateStart
	})
	if !ok {
		return fallback
	}
	return lap.LapNumber
}

// ActiveStint is the stint currently being driven, with its live tyre
// age.
type ActiveStint struct {
	openf1.Stint
	Compound Compound
	TyreAge  int
}

// CompletedStint is a finished stint with its recorded length in laps
// (zero when the upstream has not closed it yet).
type CompletedStint struct {
	openf1.Stint
	Compound Compound
	Laps     int
}

type StintState struct {
	Active    *ActiveStint
	Completed []CompletedStint
}

// DeriveStintState splits the stint feed into the active stint and the
// completed ones at currentLap. Stints announced for a future lap are
// invisible. Among the visible stints the one with the greatest
// lap_start is active; tyre age is currentLap - lap_start +
// tyre_age_at_start, floored at zero so revised upstream data can never
// produce a negative age.
func DeriveStintState(stints []openf1.Stint, currentLap int) StintState {
	state := StintState{}

	activeIdx := -1
	for i, s := range stints {
		if s.LapStart > currentLap {
			continue
		}
		if activeIdx < 0 || s.LapStart >= stints[activeIdx].LapStart {
			activeIdx = i
		}
	}
	if activeIdx < 0 {
		return state
	}

	for i, s := range stints {
		if s.LapStart > currentLap {
			continue
		}
		if i == activeIdx {
			age := currentLap - s.LapStart + s.TyreAgeAtStart
			if age < 0 {
				age = 0
			}
			state.Active = &ActiveStint{
				Stint:    s,
				Compound: NormalizeCompound(s.Compound),
				TyreAge:  age,
			}
			continue
		}
		completed := CompletedStint{
			Stint:    s,
			Compound: NormalizeCompound(s.Compound),
		}
		if s.LapEnd > 0 {
			completed.Laps = s.LapEnd - s.LapStart + 1
		}
		state.Completed = append(state.Completed, completed)
	}
	return state
}
