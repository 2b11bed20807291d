// Package metrics records run counters in a private Prometheus registry and
// can dump them in textfile-collector format.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "socialspy"

// Metrics holds all run metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Fetches        *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FetchPages     *prometheus.CounterVec
	Records        *prometheus.CounterVec
	Malformed      *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastRunSuccess prometheus.Gauge
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Source fetches by platform and result.",
		}, []string{"platform", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of one source fetch including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}, []string{"platform"}),
		FetchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_pages_total",
			Help:      "Result pages retrieved by platform.",
		}, []string{"platform"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records kept after filtering and merging, by platform.",
		}, []string{"platform"}),
		Malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Raw items skipped during normalization, by platform.",
		}, []string{"platform"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by mode and final state.",
		}, []string{"mode", "state"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run produced output without failed sources.",
		}),
	}
	m.registry.MustRegister(
		m.Fetches, m.FetchDuration, m.FetchPages, m.Records,
		m.Malformed, m.Runs, m.RunDuration, m.LastRunSuccess,
	)
	return m
}

// Registry exposes the underlying gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one source fetch.
func (m *Metrics) ObserveFetch(platform string, ok bool, pages int, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Fetches.WithLabelValues(platform, result).Inc()
	m.FetchDuration.WithLabelValues(platform).Observe(d.Seconds())
	if pages > 0 {
		m.FetchPages.WithLabelValues(platform).Add(float64(pages))
	}
}

// AddRecords records kept records for a platform.
func (m *Metrics) AddRecords(platform string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Records.WithLabelValues(platform).Add(float64(n))
}

// AddMalformed records skipped raw items for a platform.
func (m *Metrics) AddMalformed(platform string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Malformed.WithLabelValues(platform).Add(float64(n))
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(mode, state string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(mode, state).Inc()
	m.RunDuration.Observe(d.Seconds())
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. The parent directory is created when missing.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return errors.New("metrics are not initialized")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("textfile path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
