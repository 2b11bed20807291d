package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/record"
)

const (
	defaultTopN     = 10
	maxCaptionRunes = 70
)

// Formatter renders a run report.
type Formatter interface {
	Format(w io.Writer, report *engine.RunReport) error
}

// TerminalFormatter renders a run summary for a terminal.
type TerminalFormatter struct {
	color bool
	top   int
	now   func() time.Time
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color, top: defaultTopN, now: time.Now}
}

// WithTop sets how many records are listed. Zero lists none.
func (f *TerminalFormatter) WithTop(n int) *TerminalFormatter {
	if n >= 0 {
		f.top = n
	}
	return f
}

// Format writes the per-platform status, the top records and the totals.
func (f *TerminalFormatter) Format(w io.Writer, report *engine.RunReport) error {
	if report == nil {
		return errors.New("report is nil")
	}

	fmt.Fprintln(w, f.bold(reportTitle(report)))
	fmt.Fprintln(w, f.dim(fmt.Sprintf("%s | min views %s | run %s",
		report.TimeWindow.Label(), humanize.Comma(report.MinViewThreshold), report.RunID)))
	fmt.Fprintln(w)

	for _, p := range report.Platforms() {
		f.writeStatus(w, p, report.PerPlatformStatus[p])
	}
	fmt.Fprintln(w)

	if len(report.Records) == 0 {
		fmt.Fprintln(w, "No records matched.")
	} else if f.top > 0 {
		n := min(f.top, len(report.Records))
		fmt.Fprintln(w, f.bold(fmt.Sprintf("Top %d of %d", n, len(report.Records))))
		for i, r := range report.Records[:n] {
			f.writeRecord(w, i+1, r)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Fetched %s, kept %s, skipped %s malformed. State: %s\n",
		humanize.Comma(int64(report.TotalFetched)),
		humanize.Comma(int64(report.TotalAfterFilter)),
		humanize.Comma(int64(report.TotalMalformed)),
		f.state(report.State))
	return nil
}

func (f *TerminalFormatter) writeStatus(w io.Writer, p record.Platform, s engine.PlatformStatus) {
	switch {
	case s.Succeeded:
		fmt.Fprintf(w, "%s %-9s %s kept, %d pages\n", f.green("[ OK ]"), p.Label(), humanize.Comma(int64(s.Kept)), s.Pages)
	case s.Usable:
		fmt.Fprintf(w, "%s %-9s %s kept, %d/%d targets failed: %s\n", f.yellow("[PART]"), p.Label(),
			humanize.Comma(int64(s.Kept)), s.Failed, s.Targets, s.ErrorDetail)
	default:
		fmt.Fprintf(w, "%s %-9s %s: %s\n", f.red("[FAIL]"), p.Label(), s.ErrorKind, s.ErrorDetail)
	}
}

func (f *TerminalFormatter) writeRecord(w io.Writer, n int, r record.ContentRecord) {
	who := ""
	if r.SourceAccount != nil {
		who = " @" + *r.SourceAccount
	}
	fmt.Fprintf(w, "%3d. [%s]%s %s\n", n, r.Platform.Label(), who, truncate(r.CaptionOrTitle, maxCaptionRunes))

	parts := []string{humanize.Comma(r.ViewCount) + " views"}
	if r.LikeCount != nil {
		parts = append(parts, humanize.Comma(*r.LikeCount)+" likes")
	}
	if r.EngagementRate != nil {
		parts = append(parts, fmt.Sprintf("%.2f%% engagement", *r.EngagementRate))
	}
	parts = append(parts, humanize.RelTime(r.PublishedAt, f.now(), "ago", "from now"))
	fmt.Fprintf(w, "     %s\n", f.dim(strings.Join(parts, " | ")))
	if r.URL != "" {
		fmt.Fprintf(w, "     %s\n", f.dim(r.URL))
	}
}

// FormatSpy writes a username probe summary.
func (f *TerminalFormatter) FormatSpy(w io.Writer, report *engine.SpyReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	fmt.Fprintln(w, f.bold(fmt.Sprintf("socialspy: username %q found on %d of %d sites",
		report.Username, len(report.Found), len(report.Sites))))
	fmt.Fprintln(w)
	for _, site := range report.Found {
		url := ""
		if u := report.Sites[site].URL; u != nil {
			url = *u
		}
		fmt.Fprintf(w, "%s %s %s\n", f.green("[+]"), site, f.dim(url))
	}
	if len(report.Found) == 0 {
		fmt.Fprintln(w, "No accounts found.")
	}
	return nil
}

func reportTitle(r *engine.RunReport) string {
	if r.Mode == record.ModeCompetitor {
		return "socialspy: competitor analysis"
	}
	return fmt.Sprintf("socialspy: search %q", r.Keyword)
}

func (f *TerminalFormatter) state(s engine.State) string {
	if s == engine.StateDone {
		return f.green(string(s))
	}
	return f.yellow(string(s))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// Color helpers are no-ops when color=false.

func (f *TerminalFormatter) paint(s string, attrs ...color.Attribute) string {
	if !f.color {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (f *TerminalFormatter) bold(s string) string   { return f.paint(s, color.Bold) }
func (f *TerminalFormatter) green(s string) string  { return f.paint(s, color.FgGreen) }
func (f *TerminalFormatter) yellow(s string) string { return f.paint(s, color.FgYellow) }
func (f *TerminalFormatter) red(s string) string    { return f.paint(s, color.FgRed) }
func (f *TerminalFormatter) dim(s string) string    { return f.paint(s, color.Faint) }
