package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/metrics"
	"github.com/ppiankov/socialspy/internal/output"
	"github.com/ppiankov/socialspy/internal/privacy"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/source"
	"github.com/ppiankov/socialspy/internal/spy"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
	spyDirName     = "spy"
)

// Hooks for tests.
var (
	buildClients = defaultClients
	buildProber  = defaultProber
)

// defaultClients creates one client per platform, configured from cfg.
func defaultClients(cfg *config.Config, log logging.Logger) []source.Client {
	common := []source.Option{
		source.WithFetchTimeout(cfg.Fetch.Timeout.Duration),
		source.WithRetry(cfg.Fetch.MaxAttempts, retryBaseDelay, retryMaxDelay),
		source.WithMaxPages(cfg.Fetch.MaxPages),
		source.WithLogger(log),
	}

	ytOpts := append(append([]source.Option(nil), common...), source.WithRSSListing(cfg.YouTube.RSSListing))
	ttOpts := append(append([]source.Option(nil), common...), source.WithMinInterval(cfg.TikTok.MinInterval.Duration))

	return []source.Client{
		source.NewYouTube(cfg.Credentials.YouTubeAPIKey, ytOpts...),
		source.NewInstagram(cfg.Credentials.RapidAPIKey, common...),
		source.NewTikTok(cfg.Credentials.RapidAPIKey, ttOpts...),
	}
}

func defaultProber(cfg *config.Config, log logging.Logger) spy.Prober {
	return spy.NewSherlock(cfg.Sherlock.Path, cfg.Sherlock.PythonPath, cfg.Sherlock.Timeout.Duration, log)
}

// app bundles what a run command needs.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	writer  *output.Writer
	metrics *metrics.Metrics
}

func newApp(formats []string) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if len(formats) == 0 {
		formats = cfg.Output.Formats
	}
	parsed, err := output.ParseFormats(formats)
	if err != nil {
		return nil, err
	}

	var redactor *privacy.Redactor
	if cfg.Privacy.Redact.Enabled {
		redactor, err = privacy.NewRedactor(cfg.Privacy.Redact.Patterns)
		if err != nil {
			return nil, fmt.Errorf("compile redact patterns: %w", err)
		}
	}

	m := metrics.New()
	eng := engine.New(buildClients(cfg, logger),
		engine.WithProber(buildProber(cfg, logger)),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithConcurrency(cfg.Fetch.Concurrency),
		engine.WithRunTimeout(cfg.Fetch.RunTimeout.Duration),
	)

	return &app{
		cfg:     cfg,
		engine:  eng,
		metrics: m,
		writer: output.NewWriter(
			output.WithFormats(parsed...),
			output.WithRedactor(redactor),
			output.WithLogger(logger),
		),
	}, nil
}

// run executes spec, writes every export and prints the summary. A run with
// no usable platform still prints its status before returning the error.
func (a *app) run(ctx context.Context, spec record.QuerySpec, outDir string) error {
	if outDir == "" {
		outDir = a.cfg.Output.Dir
	}

	report, runErr := a.engine.Run(ctx, spec)
	defer a.flushMetrics()
	if report == nil {
		return runErr
	}

	term := output.NewTerminal(useColor())
	if err := term.Format(os.Stdout, report); err != nil {
		return fmt.Errorf("format summary: %w", err)
	}
	if errors.Is(runErr, engine.ErrNoUsableSource) {
		return runErr
	}

	res := a.writer.Write(ctx, report, output.Destination{Dir: outDir})
	printFiles(res)
	if err := res.Err(); err != nil {
		if len(res.Files) == 0 {
			return fmt.Errorf("write output: %w", err)
		}
		logger.WithError(err).Warn("some output formats failed")
	}
	return runErr
}

func (a *app) spy(ctx context.Context, username, outDir string) error {
	if outDir == "" {
		outDir = filepath.Join(a.cfg.Output.Dir, spyDirName)
	}

	report, err := a.engine.Spy(ctx, record.NewSpyQuery(username))
	defer a.flushMetrics()
	if err != nil {
		return err
	}

	term := output.NewTerminal(useColor())
	if err := term.FormatSpy(os.Stdout, report); err != nil {
		return fmt.Errorf("format summary: %w", err)
	}

	res := a.writer.WriteSpy(report, outDir)
	printFiles(res)
	if err := res.Err(); err != nil {
		return fmt.Errorf("write spy output: %w", err)
	}
	return nil
}

func (a *app) flushMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		logger.WithError(err).Warn("failed to write metrics textfile")
	}
}

func printFiles(res output.WriteResult) {
	if len(res.Files) == 0 {
		return
	}
	fmt.Println()
	for _, f := range res.Files {
		fmt.Printf("  saved: %s\n", f)
	}
	for _, e := range res.Errors {
		fmt.Printf("  failed: %s (%v)\n", e.Path, e.Err)
	}
}

func useColor() bool {
	if noColor {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// parsePlatforms turns --platform values into platforms in canonical order.
// Empty input means the configured default.
func parsePlatforms(values []string, fallback []record.Platform) ([]record.Platform, error) {
	if len(values) == 0 {
		return fallback, nil
	}
	enabled := make(map[record.Platform]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(part), "all") {
				for _, p := range record.AllPlatforms {
					enabled[p] = true
				}
				continue
			}
			p, err := record.ParsePlatform(part)
			if err != nil {
				return nil, err
			}
			enabled[p] = true
		}
	}
	var out []record.Platform
	for _, p := range record.AllPlatforms {
		if enabled[p] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}
