package tracker

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"openf1companion/pkg/bests"
	"openf1companion/pkg/circuit"
	"openf1companion/pkg/clock"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/laps"
	"openf1companion/pkg/openf1"
	"openf1companion/pkg/pubsub"
	"openf1companion/pkg/timeseries"
)

const (
	// Fast feeds: gaps, position, telemetry. Slow feeds: stints,
	// session bests, weather, pit stops.
	FastInterval = 5 * time.Second
	SlowInterval = 30 * time.Second

	// Re-entrant initialization can trigger near-simultaneous polls;
	// anything inside this window is a duplicate.
	debounceWindow = 200 * time.Millisecond
)

// Pub/sub topics. Snapshot and overtake topics are per driver.
const (
	SnapshotTopicPrefix = "snapshot:"
	OvertakeTopicPrefix = "overtake:"
	BestsTopic          = "session-best"
)

// Snapshot is the consistent derived race state for one driver at one
// cutoff instant. Every field is computed from the same clock read.
type Snapshot struct {
	DriverNumber int             `json:"driverNumber"`
	DriverName   string          `json:"driverName"`
	ComputedAt   time.Time       `json:"computedAt"`
	CurrentLap   int             `json:"currentLap"`
	Stints       laps.StintState `json:"stints"`
	Gaps         []gaps.Snapshot `json:"gaps"`
	Events       []gaps.Event    `json:"events"`
	Position     *circuit.Point  `json:"position,omitempty"`
	ActiveCorner int             `json:"activeCorner,omitempty"`
	HasCorner    bool            `json:"hasCorner"`
	Speed        float64         `json:"speed,omitempty"`
	Weather      *openf1.Weather `json:"weather,omitempty"`
	LastPit      *openf1.PitStop `json:"lastPit,omitempty"`
}

type Config struct {
	SessionKey   string
	CircuitKey   int
	Year         int
	DriverNumber int
	StartingLap  int
}

// Session polls the feeds for one tracked driver and owns the mutable
// per-driver state: the corner hysteresis tracker, the session-best
// baseline and the overtake log. Cancel the context passed to Run to
// tear the session down; in-flight requests are cancelled with it and
// any result landing after cancellation is discarded.
type Session struct {
	cfg      Config
	clk      clock.SessionClock
	api      *openf1.Client
	circuits *circuit.Provider

	snapshots *pubsub.PubSub[Snapshot]
	overtakes *pubsub.PubSub[gaps.Event]
	bestsPub  *pubsub.PubSub[bests.Best]

	corner   circuit.CornerTracker
	bests    *bests.Tracker
	eventLog *gaps.EventLog

	mu         sync.Mutex
	last       Snapshot
	driverName string
	stints     laps.StintState
	weather    *openf1.Weather
	lastPit    *openf1.PitStop
	lastFast   time.Time
	lastSlow   time.Time
}

func NewSession(cfg Config, clk clock.SessionClock, api *openf1.Client, circuits *circuit.Provider,
	snapshots *pubsub.PubSub[Snapshot], overtakes *pubsub.PubSub[gaps.Event], bestsPub *pubsub.PubSub[bests.Best]) *Session {
	return &Session{
		cfg:       cfg,
		clk:       clk,
		api:       api,
		circuits:  circuits,
		snapshots: snapshots,
		overtakes: overtakes,
		bestsPub:  bestsPub,
		bests:     bests.NewTracker(),
		eventLog:  gaps.NewEventLog(gaps.MaxEvents),
		last:      Snapshot{DriverNumber: cfg.DriverNumber, CurrentLap: cfg.StartingLap},
	}
}

// Run polls until ctx is cancelled. The first fast and slow cycles run
// immediately so subscribers do not wait a full tick for data.
func (s *Session) Run(ctx context.Context) {
	s.resolveDriverName(ctx)

	fast := time.NewTicker(FastInterval)
	slow := time.NewTicker(SlowInterval)
	defer fast.Stop()
	defer slow.Stop()

	s.pollSlow(ctx)
	s.pollFast(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-fast.C:
			s.pollFast(ctx)
		case <-slow.C:
			s.pollSlow(ctx)
		}
	}
}

// Snapshot returns the most recently derived state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Events returns the rolling overtake log.
func (s *Session) Events() []gaps.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventLog.Events()
}

// SessionBest returns the current global best for a sector key.
func (s *Session) SessionBest(key bests.SectorKey) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bests.Best(key)
}

func (s *Session) resolveDriverName(ctx context.Context) {
	drivers, err := s.api.Drivers(ctx, s.cfg.SessionKey, s.cfg.DriverNumber)
	if err != nil || len(drivers) == 0 {
		log.Printf("could not resolve driver %d name: %v", s.cfg.DriverNumber, err)
		return
	}
	s.mu.Lock()
	s.driverName = drivers[0].FullName
	s.mu.Unlock()
}

// pollFast derives lap, gaps, overtakes and corner from the fast feeds.
// The clock is read exactly once; that instant is the cutoff for every
// lookup in this cycle.
func (s *Session) pollFast(ctx context.Context) {
	s.mu.Lock()
	if !s.lastFast.IsZero() && time.Since(s.lastFast) < debounceWindow {
		s.mu.Unlock()
		return
	}
	s.lastFast = time.Now()
	s.mu.Unlock()

	cutoff := s.clk.Now()

	var (
		wg        sync.WaitGroup
		lapFeed   []openf1.Lap
		intervals []openf1.Interval
		locations []openf1.Location
		carData   []openf1.CarData
	)
	fetch := func(run func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}
	fetch(func() {
		var err error
		lapFeed, err = s.api.Laps(ctx, s.cfg.SessionKey, s.cfg.DriverNumber)
		logFeedError("laps", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		intervals, err = s.api.Intervals(ctx, s.cfg.SessionKey, s.cfg.DriverNumber, cutoff)
		logFeedError("intervals", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		locations, err = s.api.Locations(ctx, s.cfg.SessionKey, s.cfg.DriverNumber, cutoff)
		logFeedError("location", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		carData, err = s.api.CarData(ctx, s.cfg.SessionKey, s.cfg.DriverNumber, cutoff)
		logFeedError("car_data", s.cfg.DriverNumber, err)
	})
	wg.Wait()

	// the session was torn down while requests were in flight
	if ctx.Err() != nil {
		return
	}

	currentLap := laps.CurrentLap(lapFeed, cutoff, s.cfg.StartingLap)
	snaps := gaps.Snapshots(intervals)
	detected := gaps.DetectOvertakes(intervals, lapFeed, s.cfg.DriverNumber, s.cfg.StartingLap)

	var position *circuit.Point
	if loc, ok := timeseries.LatestAtOrBefore(locations, cutoff, func(l openf1.Location) time.Time { return l.Date }); ok {
		position = &circuit.Point{X: loc.X, Y: loc.Y}
	}

	speed := 0.0
	if sample, ok := timeseries.LatestAtOrBefore(carData, cutoff, func(c openf1.CarData) time.Time { return c.Date }); ok {
		speed = sample.Speed
	}

	var layout *circuit.Layout
	if position != nil {
		var err error
		layout, err = s.circuits.Layout(ctx, s.cfg.CircuitKey, s.cfg.Year)
		if err != nil {
			// corner highlighting degrades, telemetry stays up
			log.Printf("circuit layout unavailable: %v", err)
		}
	}

	s.mu.Lock()
	added := s.eventLog.Merge(detected)

	activeCorner, hasCorner := 0, false
	if position != nil && layout != nil {
		activeCorner, hasCorner = s.corner.Update(*position, layout.Corners)
	}

	snapshot := Snapshot{
		DriverNumber: s.cfg.DriverNumber,
		DriverName:   s.driverName,
		ComputedAt:   cutoff,
		CurrentLap:   currentLap,
		Stints:       s.stints,
		Gaps:         snaps,
		Events:       s.eventLog.Events(),
		Position:     position,
		ActiveCorner: activeCorner,
		HasCorner:    hasCorner,
		Speed:        speed,
		Weather:      s.weather,
		LastPit:      s.lastPit,
	}
	s.last = snapshot
	s.mu.Unlock()

	for _, e := range added {
		s.overtakes.Publish(OvertakeTopicPrefix+strconv.Itoa(s.cfg.DriverNumber), e)
	}
	s.snapshots.Publish(SnapshotTopicPrefix+strconv.Itoa(s.cfg.DriverNumber), snapshot)
}

// pollSlow refreshes stints, session bests, weather and pit stops.
func (s *Session) pollSlow(ctx context.Context) {
	s.mu.Lock()
	if !s.lastSlow.IsZero() && time.Since(s.lastSlow) < debounceWindow {
		s.mu.Unlock()
		return
	}
	s.lastSlow = time.Now()
	s.mu.Unlock()

	cutoff := s.clk.Now()

	var (
		wg        sync.WaitGroup
		lapFeed   []openf1.Lap
		stintFeed []openf1.Stint
		allLaps   []openf1.Lap
		weather   []openf1.Weather
		pitStops  []openf1.PitStop
	)
	fetch := func(run func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}
	fetch(func() {
		var err error
		lapFeed, err = s.api.Laps(ctx, s.cfg.SessionKey, s.cfg.DriverNumber)
		logFeedError("laps", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		stintFeed, err = s.api.Stints(ctx, s.cfg.SessionKey, s.cfg.DriverNumber)
		logFeedError("stints", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		allLaps, err = s.api.AllLaps(ctx, s.cfg.SessionKey)
		logFeedError("all laps", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		weather, err = s.api.Weather(ctx, s.cfg.SessionKey, cutoff)
		logFeedError("weather", s.cfg.DriverNumber, err)
	})
	fetch(func() {
		var err error
		pitStops, err = s.api.PitStops(ctx, s.cfg.SessionKey, s.cfg.DriverNumber)
		logFeedError("pit", s.cfg.DriverNumber, err)
	})
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	currentLap := laps.CurrentLap(lapFeed, cutoff, s.cfg.StartingLap)
	stintState := laps.DeriveStintState(stintFeed, currentLap)

	var latestWeather *openf1.Weather
	if w, ok := timeseries.LatestAtOrBefore(weather, cutoff, func(w openf1.Weather) time.Time { return w.Date }); ok {
		latestWeather = &w
	}
	var lastPit *openf1.PitStop
	if p, ok := timeseries.LatestAtOrBefore(pitStops, cutoff, func(p openf1.PitStop) time.Time { return p.Date }); ok {
		lastPit = &p
	}

	s.mu.Lock()
	s.stints = stintState
	s.weather = latestWeather
	s.lastPit = lastPit
	hits := s.bests.Update(allLaps, []int{s.cfg.DriverNumber})
	s.mu.Unlock()

	for _, hit := range hits {
		s.bestsPub.Publish(BestsTopic, hit)
	}
}

func logFeedError(feed string, driver int, err error) {
	if err != nil {
		// a failed feed degrades to "no data" for this cycle
		log.Printf("error fetching %s for driver %d: %s", feed, driver, err.Error())
	}
}

