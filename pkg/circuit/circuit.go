package circuit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Corner struct {
	Number        int     `json:"number"`
	TrackPosition Point   `json:"trackPosition"`
	Angle         float64 `json:"angle"`
	Length        float64 `json:"length"`
}

// Layout is the immutable circuit geometry: the track outline in
// circuit-local planar coordinates, the numbered corners, and the
// rotation used for display.
type Layout struct {
	Outline  []Point  `json:"outline"`
	Corners  []Corner `json:"corners"`
	Rotation float64  `json:"rotation"`
}

// layoutResponse matches the circuit-shape provider's wire format: the
// outline arrives as parallel x/y arrays.
type layoutResponse struct {
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
	Corners  []Corner  `json:"corners"`
	Rotation float64   `json:"rotation"`
}

// Provider fetches the circuit shape once and serves it for the rest of
// the process lifetime. Only a successful fetch is pinned; a failure is
// returned to the caller and retried on the next request, so a flaky
// start does not permanently degrade corner tracking.
type Provider struct {
	domain string
	client *http.Client

	mu    sync.Mutex
	byKey map[int]*Layout
}

func NewProvider(domain string) *Provider {
	return &Provider{
		domain: domain,
		client: http.DefaultClient,
		byKey:  make(map[int]*Layout),
	}
}

// Layout returns the geometry for a circuit key, fetching it at most
// once.
func (p *Provider) Layout(ctx context.Context, circuitKey, year int) (*Layout, error) {
	p.mu.Lock()
	if l, ok := p.byKey[circuitKey]; ok {
		p.mu.Unlock()
		return l, nil
	}
	p.mu.Unlock()

	l, err := p.fetch(ctx, circuitKey, year)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.byKey[circuitKey] = l
	p.mu.Unlock()
	return l, nil
}

func (p *Provider) fetch(ctx context.Context, circuitKey, year int) (*Layout, error) {
	u := fmt.Sprintf("%s/api/v1/circuits/%d/%d", p.domain, circuitKey, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", u)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting circuit %d", circuitKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d fetching circuit %d", resp.StatusCode, circuitKey)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading circuit %d", circuitKey)
	}

	var raw layoutResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding circuit %d", circuitKey)
	}

	layout := &Layout{
		Corners:  raw.Corners,
		Rotation: raw.Rotation,
	}
	for i := range raw.X {
		if i >= len(raw.Y) {
			break
		}
		layout.Outline = append(layout.Outline, Point{X: raw.X[i], Y: raw.Y[i]})
	}
	return layout, nil
}
