package laps

import (
	"testing"
	"time"

	"openf1companion/pkg/openf1"
)

func lapFeed(t0 time.Time) []openf1.Lap {
	return []openf1.Lap{
		{LapNumber: 1, DateStart: t0},
		{LapNumber: 2, DateStart: t0.Add(60 * time.Second)},
		{LapNumber: 3, DateStart: t0.Add(120 * time.Second)},
	}
}

func TestCurrentLap(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	feed := lapFeed(t0)

	tests := []struct {
		name   string
		cutoff time.Time
		want   int
	}{
		{"mid second lap", t0.Add(90 * time.Second), 2},
		{"exactly at lap start", t0.Add(120 * time.Second), 3},
		{"long after the last lap", t0.Add(time.Hour), 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CurrentLap(feed, tc.cutoff, 1); got != tc.want {
				t.Errorf("CurrentLap = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCurrentLapFallback(t *testing.T) {
	t0 := time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)
	if got := CurrentLap(lapFeed(t0), t0.Add(-time.Minute), 7); got != 7 {
		t.Errorf("cutoff before the feed should return the fallback, got %d", got)
	}
	if got := CurrentLap(nil, t0, 7); got != 7 {
		t.Errorf("empty feed should return the fallback, got %d", got)
	}
}

func TestDeriveStintState(t *testing.T) {
	stints := []openf1.Stint{
		{StintNumber: 1, LapStart: 1, LapEnd: 14, Compound: "MEDIUM"},
		{StintNumber: 2, LapStart: 15, LapEnd: 0, Compound: "HARD", TyreAgeAtStart: 2},
		{StintNumber: 3, LapStart: 40, Compound: "SOFT"},
	}

	state := DeriveStintState(stints, 20)
	if state.Active == nil {
		t.Fatal("expected an active stint")
	}
	if state.Active.StintNumber != 2 {
		t.Errorf("active stint = %d, want 2", state.Active.StintNumber)
	}
	if state.Active.TyreAge != 7 {
		t.Errorf("tyre age = %d, want 20-15+2 = 7", state.Active.TyreAge)
	}
	if len(state.Completed) != 1 {
		t.Fatalf("expected 1 completed stint, got %d", len(state.Completed))
	}
	if state.Completed[0].Laps != 14 {
		t.Errorf("completed stint length = %d, want 14", state.Completed[0].Laps)
	}
}

func TestDeriveStintStateIsIdempotent(t *testing.T) {
	stints := []openf1.Stint{
		{StintNumber: 1, LapStart: 1, LapEnd: 10, Compound: "SOFT"},
		{StintNumber: 2, LapStart: 11, Compound: "MEDIUM", TyreAgeAtStart: 1},
	}
	first := DeriveStintState(stints, 18)
	second := DeriveStintState(stints, 18)
	if first.Active.StintNumber != second.Active.StintNumber || first.Active.TyreAge != second.Active.TyreAge {
		t.Errorf("rerunning the derivation changed the result: %+v vs %+v", first.Active, second.Active)
	}
}

func TestTyreAgeNeverNegative(t *testing.T) {
	// revised upstream data can put the current lap behind lap_start
	stints := []openf1.Stint{{StintNumber: 1, LapStart: 20, Compound: "HARD", TyreAgeAtStart: 3}}
	state := DeriveStintState(stints, 19)
	if state.Active != nil {
		t.Fatal("a stint starting after the current lap must be invisible")
	}

	stints = []openf1.Stint{{StintNumber: 1, LapStart: 10, Compound: "HARD", TyreAgeAtStart: -15}}
	state = DeriveStintState(stints, 12)
	if state.Active == nil {
		t.Fatal("expected an active stint")
	}
	if state.Active.TyreAge != 0 {
		t.Errorf("tyre age = %d, want clamp to 0", state.Active.TyreAge)
	}
}

func TestFutureStintsInvisible(t *testing.T) {
	stints := []openf1.Stint{
		{StintNumber: 1, LapStart: 1, Compound: "MEDIUM"},
		{StintNumber: 2, LapStart: 30, Compound: "SOFT"},
	}
	state := DeriveStintState(stints, 10)
	if state.Active == nil || state.Active.StintNumber != 1 {
		t.Fatalf("expected stint 1 active, got %+v", state.Active)
	}
	if len(state.Completed) != 0 {
		t.Errorf("future stint must not appear as completed, got %d", len(state.Completed))
	}
}

func TestMissingCompoundDefaultsToUnknown(t *testing.T) {
	stints := []openf1.Stint{{StintNumber: 1, LapStart: 1}}
	state := DeriveStintState(stints, 5)
	if state.Active == nil {
		t.Fatal("expected an active stint")
	}
	if state.Active.Compound != Unknown {
		t.Errorf("compound = %s, want UNKNOWN", state.Active.Compound)
	}
}
