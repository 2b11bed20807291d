package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("youtube", true, 1, time.Second)
	m.AddRecords("youtube", 3)
	m.AddMalformed("tiktok", 1)
	m.ObserveRun("query", "done", time.Second, true)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err == nil {
		t.Fatal("expected error writing nil metrics")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveFetch("youtube", true, 2, 1500*time.Millisecond)
	m.ObserveFetch("tiktok", false, 0, time.Second)
	m.AddRecords("youtube", 5)
	m.AddMalformed("tiktok", 2)
	m.ObserveRun("query", "partial_failure", 3*time.Second, false)

	path := filepath.Join(t.TempDir(), "nested", "socialspy.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		`socialspy_fetches_total{platform="youtube",result="success"} 1`,
		`socialspy_fetches_total{platform="tiktok",result="failure"} 1`,
		`socialspy_fetch_pages_total{platform="youtube"} 2`,
		`socialspy_records_total{platform="youtube"} 5`,
		`socialspy_malformed_records_total{platform="tiktok"} 2`,
		`socialspy_runs_total{mode="query",state="partial_failure"} 1`,
		`socialspy_last_run_success 0`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestWriteTextfileRequiresPath(t *testing.T) {
	if err := New().WriteTextfile(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
