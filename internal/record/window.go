package record

import (
	"fmt"
	"strings"
	"time"
)

// TimeWindow bounds how far back content is considered.
type TimeWindow string

const (
	Last24h TimeWindow = "24h"
	Last7d  TimeWindow = "7d"
	Last30d TimeWindow = "30d"
	AllTime TimeWindow = "all"
)

// ParseTimeWindow accepts the short forms used on the command line
// ("24h", "7d", "30d", "all") and a few spelled-out aliases.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24h", "1d", "day":
		return Last24h, nil
	case "7d", "week":
		return Last7d, nil
	case "30d", "month":
		return Last30d, nil
	case "all", "alltime", "all-time", "":
		return AllTime, nil
	}
	return "", fmt.Errorf("unknown time window %q (want 24h, 7d, 30d or all)", s)
}

// Duration is the span covered by w. AllTime returns zero.
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case Last24h:
		return 24 * time.Hour
	case Last7d:
		return 7 * 24 * time.Hour
	case Last30d:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Cutoff returns the earliest admissible publish time relative to now.
// The second result is false for AllTime, which has no lower bound.
func (w TimeWindow) Cutoff(now time.Time) (time.Time, bool) {
	d := w.Duration()
	if d == 0 {
		return time.Time{}, false
	}
	return now.UTC().Add(-d), true
}

// Label is the human readable description of w.
func (w TimeWindow) Label() string {
	switch w {
	case Last24h:
		return "Last 24 hours"
	case Last7d:
		return "Last 7 days"
	case Last30d:
		return "Last 30 days"
	}
	return "All time"
}

// Valid reports whether w is a known window.
func (w TimeWindow) Valid() bool {
	switch w {
	case Last24h, Last7d, Last30d, AllTime:
		return true
	}
	return false
}
