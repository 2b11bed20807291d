package filter

import (
	"testing"
	"time"

	"github.com/ppiankov/socialspy/internal/record"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func rec(id string, views int64, age time.Duration) record.ContentRecord {
	return record.ContentRecord{
		Platform:    record.YouTube,
		ExternalID:  id,
		ViewCount:   views,
		PublishedAt: now.Add(-age),
	}
}

func TestMinViewsBoundary(t *testing.T) {
	keep := MinViews(2000)
	tests := []struct {
		views int64
		want  bool
	}{
		{1500, false},
		{1999, false},
		{2000, false},
		{2001, true},
		{50000, true},
	}
	for _, tt := range tests {
		if got := keep(rec("x", tt.views, 0)); got != tt.want {
			t.Errorf("MinViews(2000)(%d) = %v, want %v", tt.views, got, tt.want)
		}
	}

	if !MinViews(0)(rec("x", 1, 0)) || MinViews(0)(rec("x", 0, 0)) {
		t.Error("threshold 0 should keep only records with at least one view")
	}
}

func TestTimeWindowPredicate(t *testing.T) {
	tests := []struct {
		window record.TimeWindow
		age    time.Duration
		want   bool
	}{
		{record.Last24h, 23 * time.Hour, true},
		{record.Last24h, 24 * time.Hour, true},
		{record.Last24h, 24*time.Hour + time.Second, false},
		{record.Last7d, 6 * 24 * time.Hour, true},
		{record.Last7d, 8 * 24 * time.Hour, false},
		{record.Last30d, 29 * 24 * time.Hour, true},
		{record.AllTime, 10 * 365 * 24 * time.Hour, true},
	}
	for _, tt := range tests {
		got := TimeWindow(tt.window, now)(rec("x", 1, tt.age))
		if got != tt.want {
			t.Errorf("TimeWindow(%s) age %v = %v, want %v", tt.window, tt.age, got, tt.want)
		}
	}
}

func TestTimeWindowComparesInUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	r := record.ContentRecord{PublishedAt: now.Add(-time.Hour).In(loc), ViewCount: 1}
	if !TimeWindow(record.Last24h, now)(r) {
		t.Fatal("record one hour old in another zone should pass 24h window")
	}
}

func TestPipelineScenario(t *testing.T) {
	spec := record.NewKeywordQuery("test")
	spec.Platforms = []record.Platform{record.YouTube}

	in := []record.ContentRecord{
		rec("a", 1500, time.Hour),
		rec("b", 2000, time.Hour),
		rec("c", 2001, time.Hour),
	}
	got := New(spec, now).Apply(in)
	if len(got) != 1 || got[0].ExternalID != "c" {
		t.Fatalf("got %v, want only c", got)
	}
	if len(in) != 3 {
		t.Fatal("input must not be modified")
	}
}

func TestPipelineOrderInsensitive(t *testing.T) {
	in := []record.ContentRecord{
		rec("old-popular", 9000, 40*24*time.Hour),
		rec("new-popular", 9000, time.Hour),
		rec("new-quiet", 10, time.Hour),
	}
	a := &Pipeline{predicates: []Predicate{TimeWindow(record.Last7d, now), MinViews(100)}}
	b := &Pipeline{predicates: []Predicate{MinViews(100), TimeWindow(record.Last7d, now)}}

	ga, gb := a.Apply(in), b.Apply(in)
	if len(ga) != 1 || len(gb) != 1 || ga[0].ExternalID != gb[0].ExternalID {
		t.Fatalf("predicate order changed result: %v vs %v", ga, gb)
	}
}

func TestPipelineExtraPredicate(t *testing.T) {
	spec := record.NewKeywordQuery("x")
	spec.MinViewThreshold = 0
	onlyB := func(r record.ContentRecord) bool { return r.ExternalID == "b" }

	got := New(spec, now, onlyB).Apply([]record.ContentRecord{rec("a", 5, 0), rec("b", 5, 0)})
	if len(got) != 1 || got[0].ExternalID != "b" {
		t.Fatalf("got %v", got)
	}
}
