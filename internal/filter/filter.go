// Package filter applies stateless predicates to normalized records.
package filter

import (
	"time"

	"github.com/ppiankov/socialspy/internal/record"
)

// Predicate reports whether a record should be kept.
type Predicate func(record.ContentRecord) bool

// TimeWindow keeps records published at or after now minus the window.
// AllTime keeps everything.
func TimeWindow(window record.TimeWindow, now time.Time) Predicate {
	cutoff, bounded := window.Cutoff(now)
	if !bounded {
		return func(record.ContentRecord) bool { return true }
	}
	return func(r record.ContentRecord) bool {
		return !r.PublishedAt.UTC().Before(cutoff)
	}
}

// MinViews keeps records whose view count is strictly greater than threshold.
func MinViews(threshold int64) Predicate {
	return func(r record.ContentRecord) bool {
		return r.ViewCount > threshold
	}
}

// Pipeline is a conjunction of predicates. Order does not affect the result.
type Pipeline struct {
	predicates []Predicate
}

// New builds the standard pipeline for spec evaluated at now.
func New(spec record.QuerySpec, now time.Time, extra ...Predicate) *Pipeline {
	preds := []Predicate{
		TimeWindow(spec.TimeWindow, now),
		MinViews(spec.MinViewThreshold),
	}
	return &Pipeline{predicates: append(preds, extra...)}
}

// Keep reports whether r passes every predicate.
func (p *Pipeline) Keep(r record.ContentRecord) bool {
	for _, pred := range p.predicates {
		if !pred(r) {
			return false
		}
	}
	return true
}

// Apply returns the records that pass every predicate, preserving order.
// The input slice is not modified.
func (p *Pipeline) Apply(records []record.ContentRecord) []record.ContentRecord {
	out := make([]record.ContentRecord, 0, len(records))
	for _, r := range records {
		if p.Keep(r) {
			out = append(out, r)
		}
	}
	return out
}
