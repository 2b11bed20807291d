package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/spy"
)

// SpyReport is the result of a username probe.
type SpyReport struct {
	RunID     string                    `json:"run_id"`
	Username  string                    `json:"username"`
	Sites     map[string]spy.SiteResult `json:"sites"`
	Found     []string                  `json:"found"`
	Command   string                    `json:"command,omitempty"`
	ProbedAt  time.Time                 `json:"probed_at"`
	RawOutput string                    `json:"-"`
}

// Spy probes spec.Keyword as a username across external sites.
func (e *Engine) Spy(ctx context.Context, spec record.QuerySpec) (*SpyReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	if spec.Mode != record.ModeSpy {
		return nil, fmt.Errorf("spy requires %s mode, got %s", record.ModeSpy, spec.Mode)
	}
	if e.prober == nil {
		return nil, errors.New("no username prober configured")
	}

	username := strings.TrimSpace(spec.Keyword)
	runID := uuid.NewString()
	log := e.logger.WithFields(logging.Fields{"run_id": runID, "mode": string(record.ModeSpy), "username": username})

	start := e.now()
	res, err := e.prober.Probe(ctx, username)
	elapsed := e.now().Sub(start)
	if err != nil {
		e.metrics.ObserveRun(string(record.ModeSpy), "failed", elapsed, false)
		log.WithError(err).Warn("username probe failed")
		return nil, fmt.Errorf("probe %s: %w", username, err)
	}

	probedAt := res.ProbedAt
	if probedAt.IsZero() {
		probedAt = e.now().UTC()
	}
	report := &SpyReport{
		RunID:     runID,
		Username:  username,
		Sites:     res.Sites,
		Found:     res.Found(),
		Command:   res.Command,
		ProbedAt:  probedAt,
		RawOutput: res.Raw,
	}
	if report.Sites == nil {
		report.Sites = map[string]spy.SiteResult{}
	}

	e.metrics.ObserveRun(string(record.ModeSpy), string(StateDone), elapsed, true)
	log.WithFields(logging.Fields{"sites": len(report.Sites), "found": len(report.Found)}).Info("username probe finished")
	return report, nil
}
