// Package privacy redacts configured patterns from captions and cleans text
// for tabular export.
package privacy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/socialspy/internal/record"
)

const redactedPlaceholder = "[REDACTED]"

// Compile compiles a list of regex pattern strings into compiled regexps.
// Returns an error if any pattern is invalid.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Apply replaces all matches of the compiled patterns in text with [REDACTED].
func Apply(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Redactor scrubs record captions before they leave the process.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles patterns. An empty list yields a no-op redactor.
func NewRedactor(patterns []string) (*Redactor, error) {
	compiled, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: compiled}, nil
}

// Records returns copies of records with captions redacted. The input is
// not modified.
func (r *Redactor) Records(records []record.ContentRecord) []record.ContentRecord {
	if r == nil || len(r.patterns) == 0 {
		return records
	}
	out := make([]record.ContentRecord, len(records))
	for i, rec := range records {
		rec.CaptionOrTitle = Apply(rec.CaptionOrTitle, r.patterns)
		out[i] = rec
	}
	return out
}

var textReplacer = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"…", "...",
	"–", "-",
	"—", "-",
	" ", " ",
)

// CleanText flattens line breaks and replaces typographic punctuation with
// ASCII so the value sits on one spreadsheet row.
func CleanText(s string) string {
	return strings.TrimSpace(textReplacer.Replace(s))
}
