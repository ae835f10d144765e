package gaps

import (
	"regexp"
	"strconv"
	"strings"
)

// Tier buckets free-text commentary about a battle by urgency. It is a
// best-effort heuristic over natural-language AI output, not a numeric
// guarantee.
type Tier int

const (
	Monitoring Tier = iota
	Building
	DRSZone
	Imminent
)

func (t Tier) String() string {
	switch t {
	case Imminent:
		return "IMMINENT"
	case DRSZone:
		return "DRS_ZONE"
	case Building:
		return "BUILDING"
	default:
		return "MONITORING"
	}
}

var gapMention = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*s(?:ec(?:ond)?s?)?\b`)

var imminentCues = []string{
	"overtake", "overtaking", "pass ", "passes", "passing",
	"lunge", "dive", "sends it", "makes the move",
}

var buildingCues = []string{
	"closing", "pressure", "attack", "hunting", "catching", "reeling",
}

// ClassifyTier scans commentary text for a numeric gap mention or
// keyword cues and buckets it MONITORING < BUILDING < DRS_ZONE <
// IMMINENT.
func ClassifyTier(text string) Tier {
	lower := strings.ToLower(text)

	gap, hasGap := extractGap(lower)
	for _, cue := range imminentCues {
		if strings.Contains(lower, cue) {
			return Imminent
		}
	}
	if hasGap && gap <= 0.5 {
		return Imminent
	}
	if strings.Contains(lower, "drs") || (hasGap && gap <= drsWindow) {
		return DRSZone
	}
	if hasGap && gap <= discontinuityThreshold {
		return Building
	}
	for _, cue := range buildingCues {
		if strings.Contains(lower, cue) {
			return Building
		}
	}
	return Monitoring
}

func extractGap(lower string) (float64, bool) {
	m := gapMention.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	gap, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return gap, true
}
