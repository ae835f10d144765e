package helper

import (
	"fmt"
	"strings"
)

// SecondsToMinutes renders a lap time as mm:ss.mmm.
func SecondsToMinutes(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	minutes := int(seconds / 60)
	seconds = seconds - float64(minutes*60)
	milliseconds := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d.%03d", minutes, int(seconds), milliseconds)
}

// ToSectorTime renders a sector duration with millisecond precision.
func ToSectorTime(t float64) string {
	if t <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", t)
}

// GapSeconds renders a gap to the car ahead; missing data shows as a
// placeholder rather than a zero.
func GapSeconds(gap float64, ok bool) string {
	if !ok {
		return "—"
	}
	return fmt.Sprintf("+%.1fs", gap)
}

// ClosingRate renders a per-sample closing rate with its sign, positive
// meaning the tracked driver is closing in.
func ClosingRate(rate float64) string {
	return fmt.Sprintf("%+.2fs", rate)
}

// DriverCode builds a short display code from a full driver name:
// first letter of the first name plus the first three letters of the
// surname.
func DriverCode(name string) string {
	if name == "" {
		return ""
	}
	words := strings.Fields(name)
	if len(words) == 1 {
		if len(words[0]) > 3 {
			return strings.ToUpper(words[0][:3])
		}
		return strings.ToUpper(words[0])
	}
	surname := words[len(words)-1]
	if len(surname) > 3 {
		surname = surname[:3]
	}
	return strings.ToUpper(string(words[0][0]) + surname)
}

// CompoundSymbol maps a tyre compound to its single-letter display
// form.
func CompoundSymbol(compound string) string {
	switch compound {
	case "SOFT":
		return "S"
	case "MEDIUM":
		return "M"
	case "HARD":
		return "H"
	case "INTERMEDIATE":
		return "I"
	case "WET":
		return "W"
	default:
		return "?"
	}
}
