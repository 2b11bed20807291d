package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/socialspy/internal/record"
)

const (
	DefaultConfigDir      = ".socialspy"
	DefaultConfigFile     = "config.yaml"
	DefaultYouTubeKeyEnv  = "GOOGLE_API_KEY"
	DefaultRapidAPIKeyEnv = "RAPIDAPI_KEY"
	DefaultOutputDir      = "output"
	DefaultFetchTimeout   = 45 * time.Second
	DefaultRunTimeout     = 5 * time.Minute
	DefaultMaxPages       = 3
	DefaultMaxAttempts    = 3
	DefaultConcurrency    = 6
	DefaultTikTokInterval = 2 * time.Second
	DefaultSherlockPath   = "sherlock"
	DefaultPythonPath     = "python3"
	DefaultSherlockWait   = 5 * time.Minute
)

// DefaultFormats are the output formats used when none are configured.
var DefaultFormats = []string{"json", "csv"}

var knownFormats = map[string]bool{"json": true, "csv": true, "sqlite": true, "db": true}

// Duration wraps time.Duration for YAML unmarshaling from strings like "45s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Accounts    AccountsConfig    `yaml:"accounts"`
	Search      SearchConfig      `yaml:"search"`
	Fetch       FetchConfig       `yaml:"fetch"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	TikTok      TikTokConfig      `yaml:"tiktok"`
	Output      OutputConfig      `yaml:"output"`
	Privacy     PrivacyConfig     `yaml:"privacy"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Sherlock    SherlockConfig    `yaml:"sherlock"`
}

type CredentialsConfig struct {
	YouTubeAPIKeyEnv string `yaml:"youtube_api_key_env"`
	RapidAPIKeyEnv   string `yaml:"rapidapi_key_env"`

	// Resolved from env vars at load time.
	YouTubeAPIKey string `yaml:"-"`
	RapidAPIKey   string `yaml:"-"`
}

// AccountsConfig is the competitor roster.
type AccountsConfig struct {
	YouTube   []string `yaml:"youtube"`
	Instagram []string `yaml:"instagram"`
	TikTok    []string `yaml:"tiktok"`
}

type SearchConfig struct {
	Platforms        []string `yaml:"platforms"`
	TimeWindow       string   `yaml:"time_window"`
	MinViewThreshold *int64   `yaml:"min_view_threshold"`
}

type FetchConfig struct {
	Timeout     Duration `yaml:"timeout"`
	RunTimeout  Duration `yaml:"run_timeout"`
	MaxPages    int      `yaml:"max_pages"`
	MaxAttempts int      `yaml:"max_attempts"`
	Concurrency int      `yaml:"concurrency"`
}

type YouTubeConfig struct {
	RSSListing bool `yaml:"rss_listing"`
}

type TikTokConfig struct {
	MinInterval *Duration `yaml:"min_interval"`
}

type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type SherlockConfig struct {
	Path       string   `yaml:"path"`
	PythonPath string   `yaml:"python_path"`
	Timeout    Duration `yaml:"timeout"`
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, DefaultConfigFile)
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and
// validates. A missing file yields the defaults so that a key in the
// environment is enough to run a search.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	var cfg Config
	data, err := os.ReadFile(Path(dir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Credentials.YouTubeAPIKeyEnv == "" {
		cfg.Credentials.YouTubeAPIKeyEnv = DefaultYouTubeKeyEnv
	}
	if cfg.Credentials.RapidAPIKeyEnv == "" {
		cfg.Credentials.RapidAPIKeyEnv = DefaultRapidAPIKeyEnv
	}
	if len(cfg.Search.Platforms) == 0 {
		for _, p := range record.AllPlatforms {
			cfg.Search.Platforms = append(cfg.Search.Platforms, string(p))
		}
	}
	if cfg.Search.TimeWindow == "" {
		cfg.Search.TimeWindow = string(record.AllTime)
	}
	if cfg.Search.MinViewThreshold == nil {
		v := record.DefaultMinViewThreshold
		cfg.Search.MinViewThreshold = &v
	}
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = DefaultFetchTimeout
	}
	if cfg.Fetch.RunTimeout.Duration == 0 {
		cfg.Fetch.RunTimeout.Duration = DefaultRunTimeout
	}
	if cfg.Fetch.MaxPages == 0 {
		cfg.Fetch.MaxPages = DefaultMaxPages
	}
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = DefaultConcurrency
	}
	if cfg.TikTok.MinInterval == nil {
		cfg.TikTok.MinInterval = &Duration{DefaultTikTokInterval}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = append([]string(nil), DefaultFormats...)
	}
	if cfg.Sherlock.Path == "" {
		cfg.Sherlock.Path = DefaultSherlockPath
	}
	if cfg.Sherlock.PythonPath == "" {
		cfg.Sherlock.PythonPath = DefaultPythonPath
	}
	if cfg.Sherlock.Timeout.Duration == 0 {
		cfg.Sherlock.Timeout.Duration = DefaultSherlockWait
	}
}

func resolveEnv(cfg *Config) {
	cfg.Credentials.YouTubeAPIKey = strings.TrimSpace(os.Getenv(cfg.Credentials.YouTubeAPIKeyEnv))
	cfg.Credentials.RapidAPIKey = strings.TrimSpace(os.Getenv(cfg.Credentials.RapidAPIKeyEnv))
}

func validate(cfg *Config) error {
	for _, p := range cfg.Search.Platforms {
		if _, err := record.ParsePlatform(p); err != nil {
			return fmt.Errorf("search.platforms: %w", err)
		}
	}
	if _, err := record.ParseTimeWindow(cfg.Search.TimeWindow); err != nil {
		return fmt.Errorf("search.time_window: %w", err)
	}
	if *cfg.Search.MinViewThreshold < 0 {
		return fmt.Errorf("search.min_view_threshold: must be >= 0, got %d", *cfg.Search.MinViewThreshold)
	}

	if cfg.Fetch.Timeout.Duration < 0 || cfg.Fetch.RunTimeout.Duration < 0 {
		return errors.New("fetch: timeouts must be positive")
	}
	if cfg.Fetch.MaxPages < 1 {
		return fmt.Errorf("fetch.max_pages: must be >= 1, got %d", cfg.Fetch.MaxPages)
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts: must be >= 1, got %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency: must be >= 1, got %d", cfg.Fetch.Concurrency)
	}
	if cfg.TikTok.MinInterval.Duration < 0 {
		return errors.New("tiktok.min_interval: must not be negative")
	}

	for _, f := range cfg.Output.Formats {
		if !knownFormats[strings.ToLower(strings.TrimSpace(f))] {
			return fmt.Errorf("output.formats: unknown format %q (want json, csv or sqlite)", f)
		}
	}

	if cfg.Privacy.Redact.Enabled && len(cfg.Privacy.Redact.Patterns) == 0 {
		return errors.New("privacy.redact: enabled without patterns")
	}

	return nil
}

// Platforms returns the configured search platforms in canonical order.
func (c *Config) Platforms() []record.Platform {
	enabled := make(map[record.Platform]bool)
	for _, s := range c.Search.Platforms {
		if p, err := record.ParsePlatform(s); err == nil {
			enabled[p] = true
		}
	}
	var out []record.Platform
	for _, p := range record.AllPlatforms {
		if enabled[p] {
			out = append(out, p)
		}
	}
	return out
}

// TimeWindow returns the configured default window.
func (c *Config) TimeWindow() record.TimeWindow {
	w, err := record.ParseTimeWindow(c.Search.TimeWindow)
	if err != nil {
		return record.AllTime
	}
	return w
}

// MinViews returns the configured popularity threshold.
func (c *Config) MinViews() int64 {
	if c.Search.MinViewThreshold == nil {
		return record.DefaultMinViewThreshold
	}
	return *c.Search.MinViewThreshold
}
