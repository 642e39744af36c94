package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/lore/display"
)

// InfoCmd represents the info command
var InfoCmd = &cobra.Command{
	Use:   "info <source|unique-key>",
	Short: "Show tracked state of a codebase",
	Long: `Show the tracked state of one codebase: its identity, how many runs
were recorded, and the commit of the most recent run.

The argument is either a local working tree or a 64-hex unique key.

Examples:
  lore info .                        # Current repository
  lore info 9f86d081884c7d65...      # By unique key`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	InfoCmd.Flags().Bool("json", false, "Output results in JSON format")
}

func runInfo(cmd *cobra.Command, args []string) error {
	useJSON := display.ShouldOutputJSON(cmd)
	ctx := cmd.Context()

	uniqueKey, err := resolveUniqueKey(args[0])
	if err != nil {
		return err
	}

	tr, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tr.Close(ctx)

	info, err := tr.Info(ctx, uniqueKey)
	if err != nil {
		return err
	}

	if useJSON {
		return display.OutputJSON(info)
	}

	if info == nil {
		pterm.Warning.Printf("Codebase %s has never been ingested", uniqueKey[:12])
		return nil
	}

	pterm.Info.Printf("Codebase %s\n\n", info.UniqueKey[:12])
	fmt.Printf("  Remote:      %s\n", info.RemoteURL)
	fmt.Printf("  Branch:      %s\n", info.Branch)
	fmt.Printf("  Last commit: %s\n", info.CommitSHA)
	fmt.Printf("  Ingestions:  %d\n", info.Count)
	fmt.Printf("  Unique key:  %s\n", info.UniqueKey)
	return nil
}
