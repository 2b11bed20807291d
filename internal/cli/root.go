// Package cli provides the command-line interface for socialspy.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/logging"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string
	noColor   bool

	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "socialspy",
	Short: "Aggregate popular content across YouTube, Instagram and TikTok",
	Long: "socialspy searches YouTube, Instagram and TikTok by keyword or competitor account, " +
		"keeps what clears a view threshold, and exports one merged, ranked dataset. " +
		"It can also probe a username across hundreds of sites with Sherlock.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("socialspy %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultConfigDir, "config directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(competitorsCmd)
	rootCmd.AddCommand(spyCmd)
	rootCmd.AddCommand(accountsCmd)
}

// setup loads .env files and builds the diagnostic logger before any
// command runs.
func setup(_ *cobra.Command, _ []string) error {
	if logLevel != "" {
		logger = logging.New(os.Stderr, logLevel)
	} else {
		logger = logging.NewLogger()
	}
	config.LoadEnv(configDir, logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
