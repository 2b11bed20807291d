package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/record"
)

var competitorFlags = runFlags{minViews: -1}

var competitorsCmd = &cobra.Command{
	Use:   "competitors",
	Short: "Fetch recent content from every account in the roster",
	Long: "competitors pulls recent posts from each account listed under accounts: in config.yaml, " +
		"filters them like a search and exports one merged dataset. Manage the roster with 'socialspy accounts'.",
	Args: cobra.NoArgs,
	RunE: competitorsAction,
}

func init() {
	competitorFlags.register(competitorsCmd)
}

func competitorsAction(cmd *cobra.Command, _ []string) error {
	a, err := newApp(competitorFlags.formats)
	if err != nil {
		return err
	}

	accounts := a.cfg.Accounts.Map()
	if len(accounts) == 0 {
		return fmt.Errorf("no competitor accounts configured in %s (add one with 'socialspy accounts add <platform> <handle>')", configPathForDisplay())
	}

	spec := record.NewCompetitorQuery(accounts)
	if err := competitorFlags.apply(&spec, a.cfg); err != nil {
		return err
	}
	if len(spec.Platforms) == 0 {
		return errors.New("no competitor accounts on the selected platforms")
	}
	return a.run(commandContext(cmd), spec, competitorFlags.outputDir)
}
