package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/record"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the competitor roster",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roster accounts per platform",
	Args:  cobra.NoArgs,
	RunE:  accountsListAction,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <platform> <handle>...",
	Short: "Add accounts to the roster",
	Args:  cobra.MinimumNArgs(2),
	RunE:  accountsAddAction,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove <platform> <handle>...",
	Aliases: []string{"rm"},
	Short:   "Remove accounts from the roster",
	Args:    cobra.MinimumNArgs(2),
	RunE:    accountsRemoveAction,
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
}

func accountsListAction(_ *cobra.Command, _ []string) error {
	accounts, err := config.LoadAccounts(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	total := 0
	for _, p := range record.AllPlatforms {
		handles := accounts[p]
		fmt.Printf("%s (%d)\n", p.Label(), len(handles))
		for _, h := range handles {
			fmt.Printf("  @%s\n", h)
		}
		total += len(handles)
	}
	if total == 0 {
		fmt.Printf("\nNo accounts in %s.\n", configPathForDisplay())
	}
	return nil
}

func accountsAddAction(_ *cobra.Command, args []string) error {
	platform, err := record.ParsePlatform(args[0])
	if err != nil {
		return err
	}
	for _, handle := range args[1:] {
		added, err := config.AddAccount(configDir, platform, handle)
		if err != nil {
			return fmt.Errorf("add %s: %w", handle, err)
		}
		if added {
			fmt.Printf("  added: %s @%s\n", platform, record.NormalizeHandle(handle))
		} else {
			fmt.Printf("  exists: %s @%s\n", platform, record.NormalizeHandle(handle))
		}
	}
	return nil
}

func accountsRemoveAction(_ *cobra.Command, args []string) error {
	platform, err := record.ParsePlatform(args[0])
	if err != nil {
		return err
	}
	for _, handle := range args[1:] {
		removed, err := config.RemoveAccount(configDir, platform, handle)
		if err != nil {
			return fmt.Errorf("remove %s: %w", handle, err)
		}
		if removed {
			fmt.Printf("  removed: %s @%s\n", platform, record.NormalizeHandle(handle))
		} else {
			fmt.Printf("  not found: %s @%s\n", platform, record.NormalizeHandle(handle))
		}
	}
	return nil
}

func configPathForDisplay() string {
	return config.Path(configDir)
}
