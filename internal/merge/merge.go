// Package merge deduplicates and orders normalized records.
package merge

import (
	"sort"

	"github.com/ppiankov/socialspy/internal/record"
)

// Merge flattens batches in dispatch order, keeps the first occurrence of
// each (platform, external_id), and sorts the result.
//
// Order: platforms grouped canonically (YouTube, Instagram, TikTok), then
// view count descending, publish time descending, external id ascending.
// Merge never mutates its input and returns the same output for the same
// input.
func Merge(batches ...[]record.ContentRecord) []record.ContentRecord {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	seen := make(map[record.Key]bool, total)
	out := make([]record.ContentRecord, 0, total)
	for _, batch := range batches {
		for _, r := range batch {
			k := r.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}

	Sort(out)
	return out
}

// Sort orders records in place using the merge ordering.
func Sort(records []record.ContentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

func less(a, b record.ContentRecord) bool {
	if ra, rb := a.Platform.Rank(), b.Platform.Rank(); ra != rb {
		return ra < rb
	}
	if a.ViewCount != b.ViewCount {
		return a.ViewCount > b.ViewCount
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	return a.ExternalID < b.ExternalID
}

// CountByPlatform tallies records per platform.
func CountByPlatform(records []record.ContentRecord) map[record.Platform]int {
	counts := make(map[record.Platform]int)
	for _, r := range records {
		counts[r.Platform]++
	}
	return counts
}
