package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"openf1companion/pkg/gaps"
	"openf1companion/pkg/laps"
)

// Fallback is shown whenever the AI pipeline fails or returns nothing.
// Pipeline failures are user-visible but never fatal and never retried
// automatically.
const Fallback = "AI analysis temporarily unavailable"

// Pipeline selector tags understood by the commentary service.
const (
	PipelineBattle   = "battle-analysis"
	PipelineStrategy = "strategy-brief"
)

// Client talks to the AI commentary service: free-text prompt plus a
// pipeline tag in, free text out.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: http.DefaultClient,
	}
}

type generateRequest struct {
	Pipeline string `json:"pipeline"`
	Prompt   string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate submits a prompt and returns the raw commentary text. Use
// OrFallback at the presentation boundary.
func (c *Client) Generate(ctx context.Context, pipeline, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Pipeline: pipeline, Prompt: prompt})
	if err != nil {
		return "", errors.Wrap(err, "encoding commentary request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "building commentary request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "requesting commentary")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %d from commentary service", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading commentary response")
	}
	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrap(err, "decoding commentary response")
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", errors.New("commentary service returned empty text")
	}
	return out.Text, nil
}

// OrFallback degrades a failed or empty generation to the fixed
// fallback string.
func OrFallback(text string, err error) string {
	if err != nil || strings.TrimSpace(text) == "" {
		return Fallback
	}
	return text
}

// BuildBattlePrompt assembles the battle-analysis prompt from the
// current derived state.
func BuildBattlePrompt(driverName string, driverNumber, currentLap int, snaps []gaps.Snapshot, events []gaps.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a motorsport commentator. Car %d (%s) is on lap %d.\n", driverNumber, driverName, currentLap)
	if len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		fmt.Fprintf(&b, "Gap to the car ahead: %.1fs, closing rate %.2fs per sample, DRS %s.\n",
			last.Gap, last.ClosingRate, onOff(last.DRSActive))
	} else {
		b.WriteString("No reliable gap data at the moment.\n")
	}
	if len(events) > 0 {
		b.WriteString("Recent on-track events:\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s\n", e.Description)
		}
	}
	b.WriteString("Give three short bullet points on the state of this battle.")
	return b.String()
}

// BuildStrategyPrompt assembles the strategy prompt from stint state.
func BuildStrategyPrompt(driverName string, driverNumber, currentLap int, state laps.StintState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a race strategist. Car %d (%s) is on lap %d.\n", driverNumber, driverName, currentLap)
	if state.Active != nil {
		fmt.Fprintf(&b, "Current stint: %s tyres, %d laps old.\n", state.Active.Compound, state.Active.TyreAge)
	}
	for _, s := range state.Completed {
		fmt.Fprintf(&b, "Earlier stint: %s", s.Compound)
		if s.Laps > 0 {
			fmt.Fprintf(&b, " for %d laps", s.Laps)
		}
		b.WriteString(".\n")
	}
	b.WriteString("Give three short bullet points on the tyre strategy from here.")
	return b.String()
}

func onOff(active bool) string {
	if active {
		return "active"
	}
	return "not active"
}

// SplitBullets breaks commentary text into individual bullet lines,
// stripping list markers and blank lines.
func SplitBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
	}
	return bullets
}

// MergeBullets appends incoming bullets whose normalized text is not
// already present, keeping at most max of the most recent ones. The AI
// pipeline frequently repeats itself across polls; duplicates are
// dropped rather than shown twice.
func MergeBullets(existing, incoming []string, max int) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		seen[normalize(b)] = struct{}{}
	}
	merged := existing
	for _, b := range incoming {
		key := normalize(b)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, b)
	}
	if max > 0 && len(merged) > max {
		merged = merged[len(merged)-max:]
	}
	return merged
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
