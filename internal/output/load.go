package output

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/source"
	"github.com/ppiankov/socialspy/internal/store"
)

// LoadReport reads a run back from a sqlite export. An empty runID selects
// the most recent run in the file.
func LoadReport(ctx context.Context, path, runID string) (*engine.RunReport, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	if runID == "" {
		ids, err := st.RunIDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, errors.New("export contains no runs")
		}
		runID = ids[0]
	}

	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	statuses, err := st.PlatformStatuses(ctx, runID)
	if err != nil {
		return nil, err
	}
	records, err := st.Records(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &engine.RunReport{
		RunID:             run.ID,
		Mode:              record.Mode(run.Mode),
		Keyword:           run.Keyword,
		TimeWindow:        record.TimeWindow(run.TimeWindow),
		MinViewThreshold:  run.MinViewThreshold,
		Records:           records,
		PerPlatformStatus: make(map[record.Platform]engine.PlatformStatus, len(statuses)),
		TotalFetched:      run.TotalFetched,
		TotalAfterFilter:  run.TotalAfterFilter,
		TotalMalformed:    run.TotalMalformed,
		State:             engine.State(run.State),
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
	}
	for _, s := range statuses {
		report.PerPlatformStatus[record.Platform(s.Platform)] = engine.PlatformStatus{
			Succeeded:   s.Succeeded,
			Usable:      s.Usable,
			ErrorKind:   source.ErrorKind(s.ErrorKind),
			ErrorDetail: s.ErrorDetail,
			Targets:     s.Targets,
			Failed:      s.FailedTargets,
			Pages:       s.Pages,
			Kept:        s.Kept,
		}
	}
	return report, nil
}
