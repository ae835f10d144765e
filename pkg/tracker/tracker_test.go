package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"openf1companion/pkg/bests"
	"openf1companion/pkg/circuit"
	"openf1companion/pkg/clock"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/openf1"
	"openf1companion/pkg/pubsub"
)

// raceStart anchors the replayed feeds; the simulated clock starts 95
// seconds in, during lap 2.
var raceStart = time.Date(2023, 9, 17, 13, 0, 0, 0, time.UTC)

func feedHandler(t *testing.T, lapRequests *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts := func(offset time.Duration) string {
			return raceStart.Add(offset).Format(time.RFC3339)
		}
		switch r.URL.Path {
		case "/v1/laps":
			if lapRequests != nil {
				atomic.AddInt32(lapRequests, 1)
			}
			fmt.Fprintf(w, `[
				{"lap_number":1,"date_start":%q,"driver_number":23},
				{"lap_number":2,"date_start":%q,"driver_number":23},
				{"lap_number":3,"date_start":%q,"driver_number":23}
			]`, ts(0), ts(90*time.Second), ts(180*time.Second))
		case "/v1/intervals":
			fmt.Fprintf(w, `[
				{"date":%q,"interval":1.2},
				{"date":%q,"interval":1.1},
				{"date":%q,"interval":3.6}
			]`, ts(60*time.Second), ts(70*time.Second), ts(80*time.Second))
		case "/v1/location":
			fmt.Fprintf(w, `[{"date":%q,"x":1000,"y":20}]`, ts(90*time.Second))
		case "/v1/car_data":
			fmt.Fprintf(w, `[{"date":%q,"speed":287}]`, ts(90*time.Second))
		case "/v1/drivers":
			fmt.Fprint(w, `[{"driver_number":23,"full_name":"Alex Albon"}]`)
		case "/v1/stints", "/v1/pit", "/v1/weather":
			fmt.Fprint(w, `[]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			fmt.Fprint(w, `[]`)
		}
	}
}

func circuitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"x": [0, 1000, 2000],
			"y": [0, 0, 0],
			"corners": [
				{"number": 1, "trackPosition": {"x": 0, "y": 0}},
				{"number": 2, "trackPosition": {"x": 1000, "y": 0}},
				{"number": 3, "trackPosition": {"x": 2000, "y": 0}}
			],
			"rotation": 0
		}`)
	}
}

func newTestSession(t *testing.T, lapRequests *int32) *Session {
	t.Helper()
	api := httptest.NewServer(feedHandler(t, lapRequests))
	t.Cleanup(api.Close)
	shapes := httptest.NewServer(circuitHandler())
	t.Cleanup(shapes.Close)

	cfg := Config{
		SessionKey:   "9161",
		CircuitKey:   61,
		Year:         2023,
		DriverNumber: 23,
		StartingLap:  1,
	}
	clk := clock.NewSimulatedClock(raceStart.Add(95 * time.Second))
	return NewSession(cfg, clk,
		openf1.NewClient(api.URL, openf1.NewCache(time.Second)),
		circuit.NewProvider(shapes.URL),
		pubsub.NewPubSub[Snapshot](),
		pubsub.NewPubSub[gaps.Event](),
		pubsub.NewPubSub[bests.Best]())
}

func TestPollFastDerivesConsistentSnapshot(t *testing.T) {
	s := newTestSession(t, nil)
	s.pollFast(context.Background())

	snap := s.Snapshot()
	if snap.CurrentLap != 2 {
		t.Errorf("current lap = %d, want 2 at 95s into the race", snap.CurrentLap)
	}
	if len(snap.Gaps) != 3 {
		t.Fatalf("expected 3 gap snapshots, got %d", len(snap.Gaps))
	}
	if snap.Gaps[2].Gap != 3.6 {
		t.Errorf("latest gap = %v, want 3.6", snap.Gaps[2].Gap)
	}
	if len(snap.Events) != 1 || snap.Events[0].Type != gaps.Attacking {
		t.Fatalf("expected one ATTACKING event, got %+v", snap.Events)
	}
	if snap.Position == nil || snap.Position.X != 1000 {
		t.Errorf("unexpected position %+v", snap.Position)
	}
	if !snap.HasCorner || snap.ActiveCorner != 2 {
		t.Errorf("active corner = (%d, %v), want corner 2", snap.ActiveCorner, snap.HasCorner)
	}
	if snap.Speed != 287 {
		t.Errorf("speed = %v, want 287", snap.Speed)
	}
	if snap.ComputedAt.IsZero() {
		t.Error("snapshot must record its cutoff instant")
	}
}

func TestPollFastDebouncesReentrantPolls(t *testing.T) {
	var lapRequests int32
	s := newTestSession(t, &lapRequests)

	s.pollFast(context.Background())
	s.pollFast(context.Background()) // within the debounce window

	if got := atomic.LoadInt32(&lapRequests); got != 1 {
		t.Errorf("expected 1 lap fetch, got %d", got)
	}
}

func TestPollFastDiscardsResultsAfterCancellation(t *testing.T) {
	s := newTestSession(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.pollFast(ctx)
	snap := s.Snapshot()
	if !snap.ComputedAt.IsZero() {
		t.Error("a cancelled cycle must not publish derived state")
	}
}

func TestPollSlowDerivesStintsAndBaseline(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := func(offset time.Duration) string {
			return raceStart.Add(offset).Format(time.RFC3339)
		}
		switch r.URL.Path {
		case "/v1/laps":
			fmt.Fprintf(w, `[
				{"lap_number":1,"date_start":%q,"driver_number":23,"lap_duration":92.0,"duration_sector_1":28.3},
				{"lap_number":2,"date_start":%q,"driver_number":23,"lap_duration":91.5,"duration_sector_1":28.1}
			]`, ts(0), ts(90*time.Second))
		case "/v1/stints":
			fmt.Fprint(w, `[
				{"stint_number":1,"lap_start":1,"lap_end":0,"compound":"MEDIUM","tyre_age_at_start":2}
			]`)
		case "/v1/weather":
			fmt.Fprintf(w, `[{"date":%q,"air_temperature":29.5,"track_temperature":41.0}]`, ts(60*time.Second))
		case "/v1/pit":
			fmt.Fprint(w, `[]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer api.Close()
	shapes := httptest.NewServer(circuitHandler())
	defer shapes.Close()

	cfg := Config{SessionKey: "9161", CircuitKey: 61, Year: 2023, DriverNumber: 23, StartingLap: 1}
	s := NewSession(cfg, clock.NewSimulatedClock(raceStart.Add(95*time.Second)),
		openf1.NewClient(api.URL, openf1.NewCache(time.Second)),
		circuit.NewProvider(shapes.URL),
		pubsub.NewPubSub[Snapshot](),
		pubsub.NewPubSub[gaps.Event](),
		pubsub.NewPubSub[bests.Best]())

	s.pollSlow(context.Background())

	s.mu.Lock()
	stints := s.stints
	weather := s.weather
	s.mu.Unlock()

	if stints.Active == nil {
		t.Fatal("expected an active stint")
	}
	if stints.Active.TyreAge != 3 {
		t.Errorf("tyre age = %d, want 2-1+2 = 3", stints.Active.TyreAge)
	}
	if weather == nil || weather.AirTemperature != 29.5 {
		t.Errorf("unexpected weather %+v", weather)
	}
	if best, ok := s.SessionBest(bests.Sector1); !ok || best != 28.1 {
		t.Errorf("sector1 baseline = %v (%v), want 28.1", best, ok)
	}
}
