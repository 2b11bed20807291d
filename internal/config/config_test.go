package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/record"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_YT_KEY", "  yt-secret ")
	t.Setenv("TEST_RAPID_KEY", "rapid-secret")

	writeTestYAML(t, dir, DefaultConfigFile, `
credentials:
  youtube_api_key_env: TEST_YT_KEY
  rapidapi_key_env: TEST_RAPID_KEY
accounts:
  youtube: ["@mkbhd"]
  instagram: [natgeo]
search:
  platforms: [tiktok, youtube]
  time_window: 7d
  min_view_threshold: 500
fetch:
  timeout: 10s
  run_timeout: 2m
  max_pages: 5
  max_attempts: 2
  concurrency: 3
youtube:
  rss_listing: true
tiktok:
  min_interval: 0s
output:
  dir: exports
  formats: [json, sqlite]
privacy:
  redact:
    enabled: true
    patterns:
      - "(?i)token"
metrics:
  textfile: /tmp/socialspy.prom
sherlock:
  path: /opt/sherlock/bin/sherlock
  timeout: 90s
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Credentials.YouTubeAPIKey != "yt-secret" {
		t.Errorf("youtube key = %q, want yt-secret", cfg.Credentials.YouTubeAPIKey)
	}
	if cfg.Credentials.RapidAPIKey != "rapid-secret" {
		t.Errorf("rapidapi key = %q, want rapid-secret", cfg.Credentials.RapidAPIKey)
	}

	platforms := cfg.Platforms()
	if len(platforms) != 2 || platforms[0] != record.YouTube || platforms[1] != record.TikTok {
		t.Errorf("platforms = %v, want [youtube tiktok]", platforms)
	}
	if cfg.TimeWindow() != record.Last7d {
		t.Errorf("time window = %q, want 7d", cfg.TimeWindow())
	}
	if cfg.MinViews() != 500 {
		t.Errorf("min views = %d, want 500", cfg.MinViews())
	}

	if cfg.Fetch.Timeout.Duration != 10*time.Second {
		t.Errorf("fetch timeout = %v", cfg.Fetch.Timeout.Duration)
	}
	if cfg.Fetch.RunTimeout.Duration != 2*time.Minute {
		t.Errorf("run timeout = %v", cfg.Fetch.RunTimeout.Duration)
	}
	if cfg.Fetch.MaxPages != 5 || cfg.Fetch.MaxAttempts != 2 || cfg.Fetch.Concurrency != 3 {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if !cfg.YouTube.RSSListing {
		t.Error("rss_listing should be true")
	}
	if cfg.TikTok.MinInterval == nil || cfg.TikTok.MinInterval.Duration != 0 {
		t.Errorf("explicit zero tiktok interval should be kept, got %v", cfg.TikTok.MinInterval)
	}

	if cfg.Output.Dir != "exports" {
		t.Errorf("output dir = %q", cfg.Output.Dir)
	}
	if strings.Join(cfg.Output.Formats, ",") != "json,sqlite" {
		t.Errorf("formats = %v", cfg.Output.Formats)
	}
	if !cfg.Privacy.Redact.Enabled || len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("redact = %+v", cfg.Privacy.Redact)
	}
	if cfg.Metrics.Textfile != "/tmp/socialspy.prom" {
		t.Errorf("metrics textfile = %q", cfg.Metrics.Textfile)
	}
	if cfg.Sherlock.Path != "/opt/sherlock/bin/sherlock" {
		t.Errorf("sherlock path = %q", cfg.Sherlock.Path)
	}
	if cfg.Sherlock.PythonPath != DefaultPythonPath {
		t.Errorf("python path = %q, want default", cfg.Sherlock.PythonPath)
	}
	if cfg.Sherlock.Timeout.Duration != 90*time.Second {
		t.Errorf("sherlock timeout = %v", cfg.Sherlock.Timeout.Duration)
	}

	accounts := cfg.Accounts.Map()
	if got := accounts[record.YouTube]; len(got) != 1 || got[0] != "mkbhd" {
		t.Errorf("youtube accounts = %v, want [mkbhd]", got)
	}
	if cfg.Accounts.Count() != 2 {
		t.Errorf("account count = %d, want 2", cfg.Accounts.Count())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DefaultYouTubeKeyEnv, "from-env")
	t.Setenv(DefaultRapidAPIKeyEnv, "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Credentials.YouTubeAPIKey != "from-env" {
		t.Errorf("youtube key = %q, want from-env", cfg.Credentials.YouTubeAPIKey)
	}
	if cfg.Credentials.RapidAPIKey != "" {
		t.Errorf("rapidapi key = %q, want empty", cfg.Credentials.RapidAPIKey)
	}
	if len(cfg.Platforms()) != len(record.AllPlatforms) {
		t.Errorf("platforms = %v, want all", cfg.Platforms())
	}
	if cfg.TimeWindow() != record.AllTime {
		t.Errorf("time window = %q, want all", cfg.TimeWindow())
	}
	if cfg.MinViews() != record.DefaultMinViewThreshold {
		t.Errorf("min views = %d, want %d", cfg.MinViews(), record.DefaultMinViewThreshold)
	}
	if cfg.Fetch.Timeout.Duration != DefaultFetchTimeout {
		t.Errorf("fetch timeout = %v", cfg.Fetch.Timeout.Duration)
	}
	if cfg.Fetch.MaxPages != DefaultMaxPages || cfg.Fetch.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.TikTok.MinInterval.Duration != DefaultTikTokInterval {
		t.Errorf("tiktok interval = %v", cfg.TikTok.MinInterval.Duration)
	}
	if cfg.Output.Dir != DefaultOutputDir {
		t.Errorf("output dir = %q", cfg.Output.Dir)
	}
	if strings.Join(cfg.Output.Formats, ",") != "json,csv" {
		t.Errorf("formats = %v", cfg.Output.Formats)
	}
	if cfg.Sherlock.Path != DefaultSherlockPath || cfg.Sherlock.Timeout.Duration != DefaultSherlockWait {
		t.Errorf("sherlock = %+v", cfg.Sherlock)
	}
	if cfg.Accounts.Count() != 0 {
		t.Errorf("accounts = %+v, want empty", cfg.Accounts)
	}
}

func TestLoad_ZeroThresholdKept(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, "search:\n  min_view_threshold: 0\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinViews() != 0 {
		t.Errorf("min views = %d, want 0", cfg.MinViews())
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	if _, err := Load(" "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "search: [", "parse config"},
		{"unknown platform", "search:\n  platforms: [myspace]\n", "search.platforms"},
		{"bad window", "search:\n  time_window: last_decade\n", "search.time_window"},
		{"negative threshold", "search:\n  min_view_threshold: -1\n", "min_view_threshold"},
		{"bad duration", "fetch:\n  timeout: soon\n", "parse duration"},
		{"negative timeout", "fetch:\n  timeout: -5s\n", "timeouts must be positive"},
		{"zero pages", "fetch:\n  max_pages: -1\n", "fetch.max_pages"},
		{"zero attempts", "fetch:\n  max_attempts: -2\n", "fetch.max_attempts"},
		{"zero concurrency", "fetch:\n  concurrency: -1\n", "fetch.concurrency"},
		{"negative interval", "tiktok:\n  min_interval: -1s\n", "tiktok.min_interval"},
		{"unknown format", "output:\n  formats: [xml]\n", "unknown format"},
		{"redact without patterns", "privacy:\n  redact:\n    enabled: true\n", "without patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.yaml)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	d := Duration{45 * time.Second}
	v, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if v != "45s" {
		t.Errorf("marshal = %v, want 45s", v)
	}
}

// --- Accounts tests ---

const rosterYAML = `# competitor roster
accounts:
  # channels we track
  youtube:
    - mkbhd
  instagram: []
search:
  time_window: 30d
`

func TestAddAccount(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, rosterYAML)

	added, err := AddAccount(dir, record.YouTube, "@LinusTechTips")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected handle to be added")
	}

	added, err = AddAccount(dir, record.YouTube, "@MKBHD")
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if added {
		t.Error("case-insensitive duplicate should not be added")
	}

	if _, err := AddAccount(dir, record.TikTok, "khaby.lame"); err != nil {
		t.Fatalf("add tiktok: %v", err)
	}

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{"# competitor roster", "# channels we track", "time_window: 30d"} {
		if !strings.Contains(text, want) {
			t.Errorf("config lost %q:\n%s", want, text)
		}
	}

	accounts, err := LoadAccounts(dir)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	if got := strings.Join(accounts[record.YouTube], ","); got != "mkbhd,LinusTechTips" {
		t.Errorf("youtube = %q, want mkbhd,LinusTechTips", got)
	}
	if got := strings.Join(accounts[record.TikTok], ","); got != "khaby.lame" {
		t.Errorf("tiktok = %q, want khaby.lame", got)
	}
}

func TestAddAccount_CreatesConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	added, err := AddAccount(dir, record.Instagram, "natgeo")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected handle to be added")
	}

	accounts, err := LoadAccounts(dir)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	if got := accounts[record.Instagram]; len(got) != 1 || got[0] != "natgeo" {
		t.Errorf("instagram = %v, want [natgeo]", got)
	}
}

func TestAddAccount_NullSection(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, "accounts:\n  tiktok:\n")

	if _, err := AddAccount(dir, record.TikTok, "charlidamelio"); err != nil {
		t.Fatalf("add: %v", err)
	}
	accounts, err := LoadAccounts(dir)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	if got := accounts[record.TikTok]; len(got) != 1 || got[0] != "charlidamelio" {
		t.Errorf("tiktok = %v", got)
	}
}

func TestAddAccount_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := AddAccount(dir, record.YouTube, " @ "); err == nil {
		t.Error("expected error for blank handle")
	}
	if _, err := AddAccount(dir, record.Platform("myspace"), "tom"); err == nil {
		t.Error("expected error for unknown platform")
	}

	writeTestYAML(t, dir, DefaultConfigFile, "accounts: nope\n")
	if _, err := AddAccount(dir, record.YouTube, "mkbhd"); err == nil {
		t.Error("expected error when accounts is a scalar")
	}
}

func TestRemoveAccount(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, rosterYAML)

	removed, err := RemoveAccount(dir, record.YouTube, "@MkBhD")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("expected handle to be removed")
	}

	removed, err = RemoveAccount(dir, record.YouTube, "mkbhd")
	if err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if removed {
		t.Error("second remove should report false")
	}

	accounts, err := LoadAccounts(dir)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	if len(accounts[record.YouTube]) != 0 {
		t.Errorf("youtube = %v, want empty", accounts[record.YouTube])
	}
}

// --- Env tests ---

func TestLoadEnv(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, ".socialspy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	chdir(t, cwd)

	writeTestYAML(t, cwd, ".env", "SOCIALSPY_TEST_A=cwd\nSOCIALSPY_TEST_B=cwd\n")
	writeTestYAML(t, dir, ".env", "SOCIALSPY_TEST_B=configdir\n")
	t.Setenv("SOCIALSPY_TEST_A", "")
	t.Setenv("SOCIALSPY_TEST_B", "")

	loaded := LoadEnv(dir, logging.Discard())
	if len(loaded) != 2 {
		t.Fatalf("loaded = %v, want 2 files", loaded)
	}
	if got := os.Getenv("SOCIALSPY_TEST_A"); got != "cwd" {
		t.Errorf("A = %q, want cwd", got)
	}
	if got := os.Getenv("SOCIALSPY_TEST_B"); got != "configdir" {
		t.Errorf("B = %q, want configdir", got)
	}
}

func TestLoadEnv_NoFiles(t *testing.T) {
	chdir(t, t.TempDir())
	if loaded := LoadEnv("missing", nil); len(loaded) != 0 {
		t.Errorf("loaded = %v, want none", loaded)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
