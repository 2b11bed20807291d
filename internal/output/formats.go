package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/privacy"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/store"
)

func writeJSON(w io.Writer, records []record.ContentRecord) error {
	if records == nil {
		records = []record.ContentRecord{}
	}
	return writeIndented(w, records)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeCSV writes one header row of record field names, then one row per
// record. Null values become empty cells.
func writeCSV(w io.Writer, records []record.ContentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record.FieldNames); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(csvRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r record.ContentRecord) []string {
	rate := ""
	if r.EngagementRate != nil {
		rate = strconv.FormatFloat(*r.EngagementRate, 'f', 2, 64)
	}
	account := ""
	if r.SourceAccount != nil {
		account = *r.SourceAccount
	}
	return []string{
		string(r.Platform),
		account,
		r.ExternalID,
		privacy.CleanText(r.CaptionOrTitle),
		r.PublishedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(r.ViewCount, 10),
		optionalInt(r.LikeCount),
		optionalInt(r.CommentCount),
		optionalInt(r.ShareCount),
		r.URL,
		rate,
	}
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// writeSQLite builds the export database under a temporary name and
// renames it into place once committed.
func writeSQLite(ctx context.Context, path string, report *engine.RunReport, records []record.ContentRecord) error {
	tmp := fmt.Sprintf("%s.tmp-%s", path, report.RunID)
	_ = os.Remove(tmp)
	defer func() { _ = os.Remove(tmp) }()

	st, err := store.Open(tmp)
	if err != nil {
		return err
	}

	run := store.Run{
		ID:               report.RunID,
		Mode:             string(report.Mode),
		Keyword:          report.Keyword,
		TimeWindow:       string(report.TimeWindow),
		MinViewThreshold: report.MinViewThreshold,
		State:            string(report.State),
		TotalFetched:     report.TotalFetched,
		TotalAfterFilter: report.TotalAfterFilter,
		TotalMalformed:   report.TotalMalformed,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
	}
	var statuses []store.PlatformStatus
	for _, p := range report.Platforms() {
		s := report.PerPlatformStatus[p]
		statuses = append(statuses, store.PlatformStatus{
			Platform:      string(p),
			Succeeded:     s.Succeeded,
			Usable:        s.Usable,
			ErrorKind:     string(s.ErrorKind),
			ErrorDetail:   s.ErrorDetail,
			Targets:       s.Targets,
			FailedTargets: s.Failed,
			Pages:         s.Pages,
			Kept:          s.Kept,
		})
	}

	if err := st.SaveRun(ctx, run, statuses, records); err != nil {
		_ = st.Close()
		return err
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("close export db: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
