package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/socialspy/internal/engine"
)

// MarkdownFormatter renders a run report as Markdown.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes a status table and a record table.
func (f *MarkdownFormatter) Format(w io.Writer, report *engine.RunReport) error {
	if report == nil {
		return errors.New("report is nil")
	}

	fmt.Fprintf(w, "# %s\n\n", reportTitle(report))
	fmt.Fprintf(w, "%s, min views %d, state `%s`\n\n", report.TimeWindow.Label(), report.MinViewThreshold, report.State)

	fmt.Fprintln(w, "## Sources")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Platform | Status | Kept | Detail |")
	fmt.Fprintln(w, "|---|---|---|---|")
	for _, p := range report.Platforms() {
		s := report.PerPlatformStatus[p]
		status := "ok"
		switch {
		case !s.Usable:
			status = "failed"
		case !s.Succeeded:
			status = "partial"
		}
		fmt.Fprintf(w, "| %s | %s | %d | %s |\n", p.Label(), status, s.Kept, cell(s.ErrorDetail))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "## Records (%d)\n\n", len(report.Records))
	if len(report.Records) == 0 {
		fmt.Fprintln(w, "No records matched.")
		return nil
	}
	fmt.Fprintln(w, "| Platform | Title | Views | Engagement | Published |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, r := range report.Records {
		rate := ""
		if r.EngagementRate != nil {
			rate = fmt.Sprintf("%.2f%%", *r.EngagementRate)
		}
		title := cell(truncate(r.CaptionOrTitle, maxCaptionRunes))
		if r.URL != "" {
			title = fmt.Sprintf("[%s](%s)", title, r.URL)
		}
		fmt.Fprintf(w, "| %s | %s | %d | %s | %s |\n",
			r.Platform.Label(), title, r.ViewCount, rate, r.PublishedAt.UTC().Format(time.DateOnly))
	}
	return nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
