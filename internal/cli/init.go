package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/config"
)

const envExampleFile = ".env.example"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	wrote, err := writeIfNotExists(config.Path(configDir), []byte(exampleConfig))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	wrote, err = writeIfNotExists(filepath.Join(configDir, envExampleFile), []byte(exampleEnv))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# socialspy configuration

credentials:
  # Names of the environment variables holding the keys. Put the values in
  # .env next to this file or in the process environment.
  youtube_api_key_env: GOOGLE_API_KEY
  rapidapi_key_env: RAPIDAPI_KEY

# Competitor roster used by 'socialspy competitors'.
# Manage it with 'socialspy accounts add|remove'.
accounts:
  youtube: []
  instagram: []
  tiktok: []

search:
  platforms: [youtube, instagram, tiktok]
  time_window: all   # 24h, 7d, 30d or all
  min_view_threshold: 2000

fetch:
  timeout: 45s
  run_timeout: 5m
  max_pages: 3
  max_attempts: 3
  concurrency: 6

youtube:
  # List channel uploads through the public RSS feed instead of the
  # playlistItems API to save quota.
  rss_listing: false

tiktok:
  min_interval: 2s

output:
  dir: output
  formats: [json, csv]   # json, csv, sqlite

privacy:
  redact:
    enabled: false
    patterns: []

metrics:
  # Prometheus textfile written after each run. Empty disables it.
  textfile: ""

sherlock:
  path: sherlock
  python_path: python3
  timeout: 5m
`

const exampleEnv = `# Copy to .env and fill in.
GOOGLE_API_KEY=
RAPIDAPI_KEY=
# LOG_LEVEL=info
`
