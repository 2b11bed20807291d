package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/spy"
)

var lookupSherlock = func(cfg *config.Config) (string, bool) {
	return spy.NewSherlock(cfg.Sherlock.Path, cfg.Sherlock.PythonPath, cfg.Sherlock.Timeout.Duration, logger).Available()
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and dependencies",
	RunE:  doctorAction,
}

func doctorAction(_ *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printInfo("config directory %s missing (run 'socialspy init'); using defaults", configDir)
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	accounts := cfg.Accounts.Map()
	printCheck(true, "config.yaml (%d youtube, %d instagram, %d tiktok accounts)",
		len(accounts[record.YouTube]), len(accounts[record.Instagram]), len(accounts[record.TikTok]))

	// Credentials
	if cfg.Credentials.YouTubeAPIKey == "" {
		printCheck(false, "youtube api key (%s not set)", cfg.Credentials.YouTubeAPIKeyEnv)
		ok = false
	} else {
		printCheck(true, "youtube api key (%s)", cfg.Credentials.YouTubeAPIKeyEnv)
	}
	if cfg.Credentials.RapidAPIKey == "" {
		printCheck(false, "rapidapi key for instagram and tiktok (%s not set)", cfg.Credentials.RapidAPIKeyEnv)
		ok = false
	} else {
		printCheck(true, "rapidapi key (%s)", cfg.Credentials.RapidAPIKeyEnv)
	}

	// Output dir
	if err := checkWritable(cfg.Output.Dir); err != nil {
		printCheck(false, "output directory %s: %v", cfg.Output.Dir, err)
		ok = false
	} else {
		printCheck(true, "output directory %s", cfg.Output.Dir)
	}

	// Sherlock is only needed for spy, so it is informational.
	if entry, found := lookupSherlock(cfg); found {
		printCheck(true, "sherlock (%s)", entry)
	} else {
		printInfo("sherlock not found; 'socialspy spy' needs it (pipx install sherlock-project)")
	}

	if cfg.Metrics.Textfile != "" {
		printInfo("metrics textfile %s", cfg.Metrics.Textfile)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// checkWritable creates dir if needed and proves a file can be written.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
