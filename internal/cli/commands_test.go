package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/record"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	old := configDir
	t.Cleanup(func() { configDir = old })
	configDir = filepath.Join(t.TempDir(), ".socialspy")
	return configDir
}

func TestInitCreatesFiles(t *testing.T) {
	dir := useConfigDir(t)

	out, err := captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Initialized "+dir+" with 2 config files.")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.MinViews() != record.DefaultMinViewThreshold {
		t.Errorf("example min views = %d", cfg.MinViews())
	}
	if _, err := os.Stat(filepath.Join(dir, envExampleFile)); err != nil {
		t.Errorf("missing %s: %v", envExampleFile, err)
	}

	out, err = captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	requireContains(t, out, "already initialized")
}

func TestAccountsCommands(t *testing.T) {
	dir := useConfigDir(t)
	if _, err := captureStdout(t, func() error { return initAction(nil, nil) }); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := captureStdout(t, func() error {
		return accountsAddAction(nil, []string{"TikTok", "@khaby.lame", "charlidamelio", "KHABY.LAME"})
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "added: tiktok @khaby.lame")
	requireContains(t, out, "added: tiktok @charlidamelio")
	requireContains(t, out, "exists: tiktok @KHABY.LAME")

	out, err = captureStdout(t, func() error {
		return accountsRemoveAction(nil, []string{"tiktok", "charlidamelio", "nobody"})
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "removed: tiktok @charlidamelio")
	requireContains(t, out, "not found: tiktok @nobody")

	out, err = captureStdout(t, func() error { return accountsListAction(nil, nil) })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "TikTok (1)")
	requireContains(t, out, "  @khaby.lame")
	requireContains(t, out, "YouTube (0)")

	data, err := os.ReadFile(config.Path(dir))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	requireContains(t, string(data), "# socialspy configuration")
	requireContains(t, string(data), "sherlock:")

	if err := accountsAddAction(nil, []string{"myspace", "tom"}); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestAccountsListEmpty(t *testing.T) {
	useConfigDir(t)

	out, err := captureStdout(t, func() error { return accountsListAction(nil, nil) })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No accounts in")
}

func TestDoctor(t *testing.T) {
	dir := useConfigDir(t)
	oldLookup := lookupSherlock
	t.Cleanup(func() { lookupSherlock = oldLookup })
	lookupSherlock = func(*config.Config) (string, bool) { return "/usr/local/bin/sherlock", true }

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "exports")
	if err := os.WriteFile(config.Path(dir), []byte("output:\n  dir: "+outDir+"\naccounts:\n  youtube: [mkbhd]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(config.DefaultYouTubeKeyEnv, "yt")
	t.Setenv(config.DefaultRapidAPIKeyEnv, "rapid")

	out, err := captureStdout(t, func() error { return doctorAction(nil, nil) })
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[ OK ] config.yaml (1 youtube, 0 instagram, 0 tiktok accounts)")
	requireContains(t, out, "[ OK ] youtube api key (GOOGLE_API_KEY)")
	requireContains(t, out, "[ OK ] output directory "+outDir)
	requireContains(t, out, "[ OK ] sherlock (/usr/local/bin/sherlock)")
	requireContains(t, out, "All checks passed.")

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("doctor left files behind: %v", entries)
	}
}

func TestDoctorMissingKeys(t *testing.T) {
	useConfigDir(t)
	oldLookup := lookupSherlock
	t.Cleanup(func() { lookupSherlock = oldLookup })
	lookupSherlock = func(*config.Config) (string, bool) { return "", false }

	t.Setenv(config.DefaultYouTubeKeyEnv, "")
	t.Setenv(config.DefaultRapidAPIKeyEnv, "")
	chdir(t, t.TempDir())

	out, err := captureStdout(t, func() error { return doctorAction(nil, nil) })
	if err == nil {
		t.Fatal("expected doctor to fail without keys")
	}
	requireContains(t, out, "[FAIL] youtube api key (GOOGLE_API_KEY not set)")
	requireContains(t, out, "[FAIL] rapidapi key")
	requireContains(t, out, "[INFO] sherlock not found")
	if strings.Contains(out, "All checks passed.") {
		t.Error("doctor should not report success")
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
