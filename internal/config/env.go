package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ppiankov/socialspy/internal/logging"
)

// LoadEnv loads .env files from the working directory and the config dir
// into the process environment. Later files override earlier ones. Missing
// files are skipped.
func LoadEnv(dir string, logger logging.Logger) []string {
	logger = logging.OrDiscard(logger)

	files := []string{".env"}
	if strings.TrimSpace(dir) != "" {
		files = append(files, filepath.Join(dir, ".env"))
	}

	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			logger.WithError(err).Warnf("failed to load %s", file)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		logger.Debug("no env files loaded; relying on process environment")
	} else {
		logger.Debugf("loaded env files: %s", strings.Join(loaded, ", "))
	}
	return loaded
}
