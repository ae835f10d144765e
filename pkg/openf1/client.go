package openf1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// LatestKey selects the most recent meeting or session server-side.
const LatestKey = "latest"

// Client is a typed OpenF1 API client. Every call goes through the
// coalescing request cache, so overlapping pollers asking for the same
// URL share one upstream request.
type Client struct {
	domain string
	cache  *Cache
}

func NewClient(domain string, cache *Cache) *Client {
	return &Client{
		domain: domain,
		cache:  cache,
	}
}

func (c *Client) Laps(ctx context.Context, sessionKey string, driverNumber int) ([]Lap, error) {
	u := fmt.Sprintf("%s/v1/laps?session_key=%s&driver_number=%d", c.domain, url.QueryEscape(sessionKey), driverNumber)
	laps, err := fetchList[Lap](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(laps, func(i, j int) bool {
		return laps[i].LapNumber < laps[j].LapNumber
	})
	return laps, nil
}

// AllLaps returns every competitor's laps, for session-best scanning.
func (c *Client) AllLaps(ctx context.Context, sessionKey string) ([]Lap, error) {
	u := fmt.Sprintf("%s/v1/laps?session_key=%s", c.domain, url.QueryEscape(sessionKey))
	laps, err := fetchList[Lap](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(laps, func(i, j int) bool {
		return laps[i].LapNumber < laps[j].LapNumber
	})
	return laps, nil
}

func (c *Client) Stints(ctx context.Context, sessionKey string, driverNumber int) ([]Stint, error) {
	u := fmt.Sprintf("%s/v1/stints?session_key=%s&driver_number=%d", c.domain, url.QueryEscape(sessionKey), driverNumber)
	stints, err := fetchList[Stint](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(stints, func(i, j int) bool {
		return stints[i].LapStart < stints[j].LapStart
	})
	return stints, nil
}

func (c *Client) Intervals(ctx context.Context, sessionKey string, driverNumber int, before time.Time) ([]Interval, error) {
	u := fmt.Sprintf("%s/v1/intervals?session_key=%s&driver_number=%d%s", c.domain, url.QueryEscape(sessionKey), driverNumber, dateUpperBound(before))
	intervals, err := fetchList[Interval](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Date.Before(intervals[j].Date)
	})
	return intervals, nil
}

func (c *Client) Locations(ctx context.Context, sessionKey string, driverNumber int, before time.Time) ([]Location, error) {
	u := fmt.Sprintf("%s/v1/location?session_key=%s&driver_number=%d%s", c.domain, url.QueryEscape(sessionKey), driverNumber, dateUpperBound(before))
	locations, err := fetchList[Location](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Date.Before(locations[j].Date)
	})
	return locations, nil
}

func (c *Client) CarData(ctx context.Context, sessionKey string, driverNumber int, before time.Time) ([]CarData, error) {
	u := fmt.Sprintf("%s/v1/car_data?session_key=%s&driver_number=%d%s", c.domain, url.QueryEscape(sessionKey), driverNumber, dateUpperBound(before))
	samples, err := fetchList[CarData](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	return samples, nil
}

func (c *Client) PitStops(ctx context.Context, sessionKey string, driverNumber int) ([]PitStop, error) {
	u := fmt.Sprintf("%s/v1/pit?session_key=%s&driver_number=%d", c.domain, url.QueryEscape(sessionKey), driverNumber)
	stops, err := fetchList[PitStop](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].Date.Before(stops[j].Date)
	})
	return stops, nil
}

func (c *Client) Weather(ctx context.Context, sessionKey string, before time.Time) ([]Weather, error) {
	u := fmt.Sprintf("%s/v1/weather?session_key=%s%s", c.domain, url.QueryEscape(sessionKey), dateUpperBound(before))
	samples, err := fetchList[Weather](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	return samples, nil
}

func (c *Client) TeamRadio(ctx context.Context, sessionKey string, driverNumber int) ([]TeamRadio, error) {
	u := fmt.Sprintf("%s/v1/team_radio?session_key=%s&driver_number=%d", c.domain, url.QueryEscape(sessionKey), driverNumber)
	clips, err := fetchList[TeamRadio](ctx, c, u)
	if err != nil {
		return nil, err
	}
	sort.Slice(clips, func(i, j int) bool {
		return clips[i].Date.Before(clips[j].Date)
	})
	return clips, nil
}

func (c *Client) Sessions(ctx context.Context, sessionKey string) ([]Session, error) {
	u := fmt.Sprintf("%s/v1/sessions?session_key=%s", c.domain, url.QueryEscape(sessionKey))
	return fetchList[Session](ctx, c, u)
}

func (c *Client) Meetings(ctx context.Context, meetingKey string) ([]Meeting, error) {
	u := fmt.Sprintf("%s/v1/meetings?meeting_key=%s", c.domain, url.QueryEscape(meetingKey))
	return fetchList[Meeting](ctx, c, u)
}

func (c *Client) Drivers(ctx context.Context, sessionKey string, driverNumber int) ([]Driver, error) {
	u := fmt.Sprintf("%s/v1/drivers?session_key=%s&driver_number=%d", c.domain, url.QueryEscape(sessionKey), driverNumber)
	return fetchList[Driver](ctx, c, u)
}

// CurrentSession resolves the session to track, falling back to the
// latest one when no explicit key is configured.
func (c *Client) CurrentSession(ctx context.Context, sessionKey string) (Session, error) {
	if sessionKey == "" {
		sessionKey = LatestKey
	}
	sessions, err := c.Sessions(ctx, sessionKey)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, errors.Errorf("no session found for key %q", sessionKey)
	}
	return sessions[len(sessions)-1], nil
}

func dateUpperBound(before time.Time) string {
	if before.IsZero() {
		return ""
	}
	return "&date<=" + url.QueryEscape(before.UTC().Format(time.RFC3339))
}

func fetchList[T any](ctx context.Context, c *Client, u string) ([]T, error) {
	body, err := c.cache.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding response from %s", u)
	}
	return out, nil
}
