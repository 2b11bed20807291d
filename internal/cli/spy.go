package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/spy"
)

var spyOutputDir string

var spyCmd = &cobra.Command{
	Use:   "spy <username>",
	Short: "Probe a username across external sites with Sherlock",
	Args:  cobra.ExactArgs(1),
	RunE:  spyAction,
}

func init() {
	spyCmd.Flags().StringVarP(&spyOutputDir, "output", "o", "", "directory for the probe report (default <output.dir>/spy)")
}

func spyAction(cmd *cobra.Command, args []string) error {
	if err := spy.ValidateUsername(args[0]); err != nil {
		return err
	}

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	return a.spy(commandContext(cmd), args[0], spyOutputDir)
}
