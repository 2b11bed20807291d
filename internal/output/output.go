// Package output persists run reports as JSON, CSV and SQLite files and
// renders them for humans.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/privacy"
)

// Format is an export file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// DefaultFormats are written when the configuration names none.
var DefaultFormats = []Format{FormatJSON, FormatCSV}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

// ParseFormats validates format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FormatJSON, FormatCSV, FormatSQLite:
		case "db", "sqlite3":
			f = FormatSQLite
		default:
			return nil, fmt.Errorf("unknown output format %q", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// WriteError records one format that could not be written.
type WriteError struct {
	Format Format
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// WriteResult lists the files written and the formats that failed.
type WriteResult struct {
	Files  []string
	Errors []*WriteError
}

// Err joins all write errors, or returns nil.
func (r WriteResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Destination is where a run's files go: Dir/Base.<ext>.
type Destination struct {
	Dir  string
	Base string
}

func (d Destination) path(f Format) string {
	return filepath.Join(d.Dir, d.Base+"."+f.Ext())
}

// Writer writes run reports in the configured formats.
type Writer struct {
	formats  []Format
	redactor *privacy.Redactor
	logger   logging.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFormats selects the formats to write.
func WithFormats(formats ...Format) WriterOption {
	return func(w *Writer) {
		if len(formats) > 0 {
			w.formats = formats
		}
	}
}

// WithRedactor scrubs captions before they are written.
func WithRedactor(r *privacy.Redactor) WriterOption {
	return func(w *Writer) { w.redactor = r }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) WriterOption {
	return func(w *Writer) { w.logger = logging.OrDiscard(l) }
}

// NewWriter creates a writer. Without options it writes DefaultFormats.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		formats: DefaultFormats,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write persists report in every configured format. Each format is written
// to a temporary file and renamed into place, so a failed format leaves no
// partial file and does not stop the others.
func (w *Writer) Write(ctx context.Context, report *engine.RunReport, dest Destination) WriteResult {
	var res WriteResult
	if report == nil {
		res.Errors = append(res.Errors, &WriteError{Path: dest.Dir, Err: errors.New("report is nil")})
		return res
	}
	if strings.TrimSpace(dest.Base) == "" {
		dest.Base = BaseName(report)
	}

	records := w.redactor.Records(report.Records)

	for _, f := range w.formats {
		path := dest.path(f)
		var err error
		switch f {
		case FormatJSON:
			err = writeAtomic(path, func(out io.Writer) error { return writeJSON(out, records) })
		case FormatCSV:
			err = writeAtomic(path, func(out io.Writer) error { return writeCSV(out, records) })
		case FormatSQLite:
			err = writeSQLite(ctx, path, report, records)
		default:
			err = errors.New("unsupported format")
		}
		if err != nil {
			w.logger.WithFields(logging.Fields{"format": string(f), "path": path, "error": err.Error()}).Warn("output format failed")
			res.Errors = append(res.Errors, &WriteError{Format: f, Path: path, Err: err})
			continue
		}
		res.Files = append(res.Files, path)
	}
	return res
}

// WriteSpy stores a username probe as <dir>/<username>.json and the raw
// probe output as <dir>/<username>.txt.
func (w *Writer) WriteSpy(report *engine.SpyReport, dir string) WriteResult {
	var res WriteResult
	if report == nil {
		res.Errors = append(res.Errors, &WriteError{Path: dir, Err: errors.New("report is nil")})
		return res
	}
	base := Sanitize(report.Username)

	jsonPath := filepath.Join(dir, base+".json")
	if err := writeAtomic(jsonPath, func(out io.Writer) error { return writeIndented(out, report) }); err != nil {
		res.Errors = append(res.Errors, &WriteError{Format: FormatJSON, Path: jsonPath, Err: err})
	} else {
		res.Files = append(res.Files, jsonPath)
	}

	txtPath := filepath.Join(dir, base+".txt")
	if err := writeAtomic(txtPath, func(out io.Writer) error {
		_, err := io.WriteString(out, report.RawOutput)
		return err
	}); err != nil {
		res.Errors = append(res.Errors, &WriteError{Format: "txt", Path: txtPath, Err: err})
	} else {
		res.Files = append(res.Files, txtPath)
	}
	return res
}

// writeAtomic fills a temp file next to path and renames it into place.
func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
