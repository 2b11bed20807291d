// Package engine orchestrates one aggregation run: it fans out fetches to
// platform clients, waits for all of them, then normalizes, filters and
// merges the results into a RunReport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/socialspy/internal/filter"
	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/merge"
	"github.com/ppiankov/socialspy/internal/metrics"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/source"
	"github.com/ppiankov/socialspy/internal/spy"
)

const (
	defaultConcurrency = 6
	defaultRunTimeout  = 5 * time.Minute
)

// ErrNoUsableSource is returned by Run when no platform produced a single
// successful fetch. The report is still returned alongside it.
var ErrNoUsableSource = errors.New("no usable source: every platform failed")

// State is a run lifecycle state.
type State string

const (
	StatePending        State = "pending"
	StateDispatching    State = "dispatching"
	StateCollecting     State = "collecting"
	StateNormalizing    State = "normalizing"
	StateFiltering      State = "filtering"
	StateMerging        State = "merging"
	StateDone           State = "done"
	StatePartialFailure State = "partial_failure"
)

// Engine runs aggregation and spy requests. It is safe to reuse across runs.
type Engine struct {
	clients     map[record.Platform]source.Client
	prober      spy.Prober
	logger      logging.Logger
	metrics     *metrics.Metrics
	concurrency int
	runTimeout  time.Duration
	now         func() time.Time
	onState     func(State)
}

// Option configures an Engine.
type Option func(*Engine)

// WithProber sets the username prober used by Spy.
func WithProber(p spy.Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrDiscard(l) }
}

// WithMetrics records run counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConcurrency caps the number of in-flight fetch tasks.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRunTimeout bounds a whole run. Zero keeps the default.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// WithClock overrides the time source used for windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(e *Engine) { e.onState = fn }
}

// New creates an engine over the given clients. When two clients report the
// same platform the last one wins.
func New(clients []source.Client, opts ...Option) *Engine {
	e := &Engine{
		clients:     make(map[record.Platform]source.Client, len(clients)),
		logger:      logging.Discard(),
		concurrency: defaultConcurrency,
		runTimeout:  defaultRunTimeout,
		now:         time.Now,
	}
	for _, c := range clients {
		if c != nil {
			e.clients[c.Platform()] = c
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a query or competitor run.
//
// Per-target failures never abort the run: they are reported in
// PerPlatformStatus and move the run to StatePartialFailure. Only when no
// platform is usable does Run return ErrNoUsableSource, together with the
// report.
func (e *Engine) Run(ctx context.Context, spec record.QuerySpec) (*RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	if spec.Mode == record.ModeSpy {
		return nil, errors.New("spy mode runs through Spy, not Run")
	}

	targets := spec.Targets()
	if len(targets) == 0 {
		return nil, errors.New("query has no targets on the selected platforms")
	}

	report := &RunReport{
		RunID:            uuid.NewString(),
		Mode:             spec.Mode,
		Keyword:          strings.TrimSpace(spec.Keyword),
		TimeWindow:       spec.TimeWindow,
		MinViewThreshold: spec.MinViewThreshold,
		StartedAt:        e.now().UTC(),
	}
	log := e.logger.WithFields(logging.Fields{"run_id": report.RunID, "mode": string(spec.Mode)})
	e.transition(report, StatePending, log)

	outcomes := e.dispatch(ctx, report, targets, spec.TimeWindow, log)

	e.transition(report, StateNormalizing, log)
	batches := e.normalize(outcomes, report, log)

	e.transition(report, StateFiltering, log)
	pipeline := filter.New(spec, e.now())
	for i, b := range batches {
		batches[i] = pipeline.Apply(b)
	}

	e.transition(report, StateMerging, log)
	report.Records = merge.Merge(batches...)
	report.TotalAfterFilter = len(report.Records)
	report.PerPlatformStatus = summarize(targets, outcomes, report)

	failed := false
	for _, o := range outcomes {
		if !o.Succeeded {
			failed = true
			break
		}
	}
	final := StateDone
	if failed {
		final = StatePartialFailure
	}
	report.FinishedAt = e.now().UTC()
	e.transition(report, final, log)

	for p, n := range merge.CountByPlatform(report.Records) {
		e.metrics.AddRecords(string(p), n)
	}
	usable := report.Usable()
	e.metrics.ObserveRun(string(spec.Mode), string(final), report.FinishedAt.Sub(report.StartedAt), usable && !failed)

	log.WithFields(logging.Fields{
		"fetched":   report.TotalFetched,
		"kept":      report.TotalAfterFilter,
		"malformed": report.TotalMalformed,
	}).Info("run finished")

	if !usable {
		return report, ErrNoUsableSource
	}
	return report, nil
}

// dispatch fans out one task per target and blocks until every task has
// resolved. Outcomes are indexed by dispatch order.
func (e *Engine) dispatch(ctx context.Context, report *RunReport, targets []record.PlatformTarget, window record.TimeWindow, log *logging.Entry) []source.FetchOutcome {
	e.transition(report, StateDispatching, log)
	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	outcomes := make([]source.FetchOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, t := range targets {
		i, t := i, t // per-iteration copies; go.mod targets Go 1.21 loop semantics
		g.Go(func() error {
			outcomes[i] = e.fetch(runCtx, t, window, log)
			return nil
		})
	}

	e.transition(report, StateCollecting, log)
	_ = g.Wait()
	return outcomes
}

func (e *Engine) fetch(ctx context.Context, t record.PlatformTarget, window record.TimeWindow, log *logging.Entry) source.FetchOutcome {
	fields := logging.Fields{"platform": string(t.Platform), "target": t.Target.String()}

	client, ok := e.clients[t.Platform]
	if !ok {
		return source.FetchOutcome{
			Platform:    t.Platform,
			Target:      t.Target,
			ErrorKind:   source.ErrorOther,
			ErrorDetail: fmt.Sprintf("no client configured for %s", t.Platform),
		}
	}
	if err := ctx.Err(); err != nil {
		return source.FetchOutcome{
			Platform:    t.Platform,
			Target:      t.Target,
			ErrorKind:   source.Classify(err),
			ErrorDetail: fmt.Sprintf("run deadline reached before dispatch: %v", err),
		}
	}

	start := e.now()
	out := client.Fetch(ctx, t.Target, window)
	elapsed := e.now().Sub(start)
	out.Platform, out.Target = t.Platform, t.Target

	e.metrics.ObserveFetch(string(t.Platform), out.Succeeded, out.Pages, elapsed)
	if out.Succeeded {
		log.WithFields(fields).WithField("items", len(out.Items)).Debug("fetch succeeded")
	} else {
		log.WithFields(fields).WithFields(logging.Fields{
			"kind":  string(out.ErrorKind),
			"error": out.ErrorDetail,
		}).Warn("fetch failed")
	}
	return out
}

// normalize converts raw items into records, one batch per outcome in
// dispatch order. Malformed items are skipped and counted.
func (e *Engine) normalize(outcomes []source.FetchOutcome, report *RunReport, log *logging.Entry) [][]record.ContentRecord {
	batches := make([][]record.ContentRecord, len(outcomes))
	malformed := make(map[record.Platform]int)

	for i, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		report.TotalFetched += len(o.Items)

		batch := make([]record.ContentRecord, 0, len(o.Items))
		for _, raw := range o.Items {
			r, err := record.Normalize(o.Platform, raw)
			if err != nil {
				malformed[o.Platform]++
				log.WithFields(logging.Fields{
					"platform": string(o.Platform),
					"target":   o.Target.String(),
					"error":    err.Error(),
				}).Warn("skipping malformed item")
				continue
			}
			if o.Target.Kind == record.TargetAccount {
				r = r.WithSourceAccount(o.Target.Value)
			}
			batch = append(batch, r)
		}
		batches[i] = batch
	}

	for p, n := range malformed {
		report.TotalMalformed += n
		e.metrics.AddMalformed(string(p), n)
	}
	return batches
}

func (e *Engine) transition(report *RunReport, s State, log *logging.Entry) {
	report.State = s
	log.WithField("state", string(s)).Debug("run state")
	if e.onState != nil {
		e.onState(s)
	}
}
