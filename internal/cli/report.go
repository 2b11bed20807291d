package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/engine"
	"github.com/ppiankov/socialspy/internal/output"
)

var (
	reportRunID  string
	reportFormat string
	reportTop    int
)

var reportCmd = &cobra.Command{
	Use:   "report <export.db>",
	Short: "Show a saved run from a sqlite export",
	Args:  cobra.ExactArgs(1),
	RunE:  reportAction,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run id (default: most recent run in the file)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "terminal", "output format: terminal, markdown, json")
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "records to list in terminal format")
	rootCmd.AddCommand(reportCmd)
}

func reportAction(cmd *cobra.Command, args []string) error {
	report, err := output.LoadReport(commandContext(cmd), args[0], reportRunID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	return renderReport(os.Stdout, report, reportFormat)
}

func renderReport(w io.Writer, report *engine.RunReport, format string) error {
	switch format {
	case "", "terminal":
		return output.NewTerminal(useColor()).WithTop(reportTop).Format(w, report)
	case "markdown", "md":
		return output.NewMarkdown().Format(w, report)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format %q (want terminal, markdown or json)", format)
	}
}
