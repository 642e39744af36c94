package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/lore/display"
	"github.com/teranos/lore/tracker"
)

var historyGraph bool

// HistoryCmd represents the history command
var HistoryCmd = &cobra.Command{
	Use:   "history <source|unique-key>",
	Short: "Show the ingestion chain of a codebase",
	Long: `Show every recorded ingestion run of a codebase, oldest first.

The argument is either a local working tree (resolved through git) or a
64-hex unique key printed by a previous run. Runs are ordered by their
chain counter; counter 1 is the first ingestion ever recorded.

With --graph the chain is emitted as a JSON node/link structure suitable
for graph visualisation tooling.

Examples:
  lore history .                       # Chain of the current repository
  lore history ~/src/app               # Chain of another working tree
  lore history 9f86d081884c7d65...     # Chain by unique key
  lore history . --graph               # Node/link JSON for visualisation`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	HistoryCmd.Flags().BoolVar(&historyGraph, "graph", false, "Emit the chain as node/link JSON")
	HistoryCmd.Flags().Bool("json", false, "Output results in JSON format")
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	entries, err := tr.History(ctx, uniqueKey)
	if err != nil {
		return err
	}

	if historyGraph {
		info, err := tr.Info(ctx, uniqueKey)
		if err != nil {
			return err
		}
		return display.OutputJSON(tracker.BuildChainGraph(info, entries))
	}

	if useJSON {
		return display.OutputJSON(entries)
	}

	if len(entries) == 0 {
		pterm.Warning.Printf("No ingestion runs recorded for key %s", uniqueKey)
		return nil
	}

	pterm.Info.Printf("Ingestion history for %s (%d runs)\n\n", uniqueKey[:12], len(entries))
	for i := range entries {
		renderHistoryEntry(&entries[i])
	}
	return nil
}

func renderHistoryEntry(e *tracker.HistoryEntry) {
	fmt.Printf("#%d  %s\n", e.Counter, e.IngestionID)
	fmt.Printf("  Commit:    %s\n", e.CommitSHA)
	fmt.Printf("  Recorded:  %s\n", e.Timestamp.Format(time.RFC3339))
	if len(e.Extra) > 0 {
		fmt.Printf("  Metadata:  %v\n", e.Extra)
	}
	fmt.Printf("\n")
}
