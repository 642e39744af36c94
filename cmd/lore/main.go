package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teranos/lore/cmd/lore/commands"
	"github.com/teranos/lore/config"
	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lore",
	Short: "Lore - ingestion memory for codebase knowledge graphs",
	Long: `Lore - ingestion memory for codebase knowledge graphs.

Lore records every ingestion run of a codebase into a Neo4j knowledge
graph and answers one question per run: NEW, UPDATE, or ERROR. Each
codebase identity (remote URL + branch) owns a linear, gap-free chain of
Ingestion nodes, so the full audit trail of what was ingested when can
be reconstructed from the graph alone.

Available commands:
  ingest  - Record ingestion runs for local or remote sources
  history - Show the ingestion chain of a codebase
  info    - Show tracked state of a codebase
  schema  - Manage graph constraints and indexes
  config  - Manage lore configuration
  version - Show version information

Examples:
  lore ingest .                    # Track the current repository
  lore ingest github.com/acme/app  # Clone and track a remote
  lore history .                   # Show the ingestion chain
  lore info .                      # Summarize tracked state
  lore schema verify               # Check store schema
  lore config show                 # Show effective configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonResults, _ := cmd.Flags().GetBool("json")

		// Config fills in what the flags leave unset. A broken config is
		// not fatal here; commands that need it surface the error.
		jsonLogs := false
		if cfg, err := config.Load(); err == nil {
			logger.SetTheme(cfg.GetLogTheme())
			jsonLogs = cfg.Log.JSON
			if verbosity == 0 {
				verbosity = cfg.Log.Verbosity
			}
		}

		// Machine-readable result output forces structured logs so stdout
		// stays parseable.
		if err := logger.InitializeWithVerbosity(jsonLogs || jsonResults, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results in JSON format")

	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.InfoCmd)
	rootCmd.AddCommand(commands.SchemaCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Cleanup()
		if errors.Is(err, commands.ErrSourceFailures) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logger.Cleanup()
}
