// Package store writes run exports to a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/socialspy/internal/record"
)

// ErrNotFound is returned when a run is not present in the database.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Run is the run-level row of an export.
type Run struct {
	ID               string
	Mode             string
	Keyword          string
	TimeWindow       string
	MinViewThreshold int64
	State            string
	TotalFetched     int
	TotalAfterFilter int
	TotalMalformed   int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// PlatformStatus is the per-platform outcome of a run.
type PlatformStatus struct {
	Platform      string
	Succeeded     bool
	Usable        bool
	ErrorKind     string
	ErrorDetail   string
	Targets       int
	FailedTargets int
	Pages         int
	Kept          int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun writes a run with its statuses and records in one transaction.
// Saving the same run id again replaces the earlier rows.
func (s *Store) SaveRun(ctx context.Context, run Run, statuses []PlatformStatus, records []record.ContentRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.Mode == "" {
		return errors.New("mode is required")
	}
	if run.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, mode, keyword, time_window, min_view_threshold, state,
			total_fetched, total_after_filter, total_malformed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Mode,
		nullString(run.Keyword),
		run.TimeWindow,
		run.MinViewThreshold,
		run.State,
		run.TotalFetched,
		run.TotalAfterFilter,
		run.TotalMalformed,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, st := range statuses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO platform_status (
				run_id, platform, succeeded, usable, error_kind, error_detail,
				targets, failed_targets, pages, kept
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			st.Platform,
			boolInt(st.Succeeded),
			boolInt(st.Usable),
			nullString(st.ErrorKind),
			nullString(st.ErrorDetail),
			st.Targets,
			st.FailedTargets,
			st.Pages,
			st.Kept,
		)
		if err != nil {
			return fmt.Errorf("insert platform status %s: %w", st.Platform, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (
			run_id, position, platform, source_account, external_id, caption_or_title,
			published_at, view_count, like_count, comment_count, share_count, url, engagement_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		var account sql.NullString
		if r.SourceAccount != nil {
			account = sql.NullString{String: *r.SourceAccount, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			run.ID,
			i,
			string(r.Platform),
			account,
			r.ExternalID,
			r.CaptionOrTitle,
			formatTime(r.PublishedAt),
			r.ViewCount,
			nullInt(r.LikeCount),
			nullInt(r.CommentCount),
			nullInt(r.ShareCount),
			r.URL,
			nullFloat(r.EngagementRate),
		)
		if err != nil {
			return fmt.Errorf("insert record %s/%s: %w", r.Platform, r.ExternalID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	if s == nil || s.db == nil {
		return Run{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		run                 Run
		keyword             sql.NullString
		startedAt, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, mode, keyword, time_window, min_view_threshold, state,
			total_fetched, total_after_filter, total_malformed, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, id).Scan(
		&run.ID, &run.Mode, &keyword, &run.TimeWindow, &run.MinViewThreshold, &run.State,
		&run.TotalFetched, &run.TotalAfterFilter, &run.TotalMalformed, &startedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	run.Keyword = keyword.String

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

// RunIDs lists saved runs, most recent first.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return ids, nil
}

// PlatformStatuses returns the statuses of a run ordered by platform name.
func (s *Store) PlatformStatuses(ctx context.Context, runID string) ([]PlatformStatus, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, succeeded, usable, error_kind, error_detail, targets, failed_targets, pages, kept
		FROM platform_status WHERE run_id = ? ORDER BY platform
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get platform status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PlatformStatus
	for rows.Next() {
		var (
			st                PlatformStatus
			succeeded, usable int
			kind, detail      sql.NullString
		)
		if err := rows.Scan(&st.Platform, &succeeded, &usable, &kind, &detail,
			&st.Targets, &st.FailedTargets, &st.Pages, &st.Kept); err != nil {
			return nil, fmt.Errorf("scan platform status: %w", err)
		}
		st.Succeeded = succeeded != 0
		st.Usable = usable != 0
		st.ErrorKind = kind.String
		st.ErrorDetail = detail.String
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platform status: %w", err)
	}
	return out, nil
}

// Records returns the records of a run in their saved order.
func (s *Store) Records(ctx context.Context, runID string) ([]record.ContentRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, source_account, external_id, caption_or_title, published_at,
			view_count, like_count, comment_count, share_count, url, engagement_rate
		FROM records WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []record.ContentRecord
	for rows.Next() {
		var (
			r                       record.ContentRecord
			platform, published     string
			account                 sql.NullString
			likes, comments, shares sql.NullInt64
			rate                    sql.NullFloat64
		)
		if err := rows.Scan(&platform, &account, &r.ExternalID, &r.CaptionOrTitle, &published,
			&r.ViewCount, &likes, &comments, &shares, &r.URL, &rate); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Platform = record.Platform(platform)
		if account.Valid {
			r.SourceAccount = &account.String
		}
		if r.PublishedAt, err = parseTime(published); err != nil {
			return nil, fmt.Errorf("parse published_at: %w", err)
		}
		r.LikeCount = intPtr(likes)
		r.CommentCount = intPtr(comments)
		r.ShareCount = intPtr(shares)
		if rate.Valid {
			r.EngagementRate = &rate.Float64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func nullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
