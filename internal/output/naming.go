package output

import (
	"strings"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/record"
)

var unsafeReplacer = strings.NewReplacer(
	" ", "_",
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Sanitize makes s safe to use as a file name component.
func Sanitize(s string) string {
	s = unsafeReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		return "untitled"
	}
	return s
}

// BaseName returns the file base for a run:
// <platform|all>_search_<query>_<window> for keyword runs and
// competitors_<window> for account runs.
func BaseName(report *engine.RunReport) string {
	window := string(report.TimeWindow)
	if window == "" {
		window = string(record.AllTime)
	}
	if report.Mode == record.ModeCompetitor {
		return "competitors_" + window
	}
	return platformLabel(report.Platforms()) + "_search_" + Sanitize(report.Keyword) + "_" + window
}

func platformLabel(platforms []record.Platform) string {
	if len(platforms) == 0 || len(platforms) == len(record.AllPlatforms) {
		return "all"
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	return strings.Join(names, "-")
}
