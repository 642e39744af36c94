package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/lore/display"
	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/logger"
	"github.com/teranos/lore/tracker"
)

// SchemaCmd represents the schema command
var SchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage graph schema for ingestion tracking",
	Long: `Manage the constraints and indexes the tracker relies on.

The tracker bootstraps the schema automatically on first use; these
commands exist for provisioning stores ahead of time and for checking
what a store actually has.

Examples:
  lore schema init          # Create missing constraints and indexes
  lore schema verify        # Exit non-zero if anything is missing
  lore schema status        # List present and missing schema objects`,
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create required constraints and indexes",
	Long:  "Create the tracker's constraints and indexes. Safe to run repeatedly; existing objects are left alone.",
	RunE:  runSchemaInit,
}

var schemaVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the schema is complete",
	Long:  "Check that every required constraint and index exists. Exits non-zero when the schema is incomplete.",
	RunE:  runSchemaVerify,
}

var schemaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List present and missing schema objects",
	RunE:  runSchemaStatus,
}

func init() {
	schemaStatusCmd.Flags().Bool("json", false, "Output status in JSON format")

	SchemaCmd.AddCommand(schemaInitCmd)
	SchemaCmd.AddCommand(schemaVerifyCmd)
	SchemaCmd.AddCommand(schemaStatusCmd)
}

func runSchemaInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, _, err := openConnector(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if err := tracker.NewSchemaManager(conn, logger.ComponentLogger("schema")).Initialize(ctx); err != nil {
		return err
	}

	pterm.Success.Printf("Schema initialized")
	return nil
}

func runSchemaVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, _, err := openConnector(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	ok, err := tracker.NewSchemaManager(conn, logger.ComponentLogger("schema")).Verify(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("schema is incomplete; run 'lore schema init'")
	}

	pterm.Success.Printf("Schema is complete")
	return nil
}

func runSchemaStatus(cmd *cobra.Command, args []string) error {
	useJSON := display.ShouldOutputJSON(cmd)
	ctx := cmd.Context()

	conn, _, err := openConnector(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	status, err := tracker.NewSchemaManager(conn, logger.ComponentLogger("schema")).Status(ctx)
	if err != nil {
		return err
	}

	if useJSON {
		return display.OutputJSON(status)
	}

	pterm.Info.Printf("Constraints: %d", len(status.Constraints))
	for _, name := range status.Constraints {
		fmt.Printf("  %s\n", name)
	}
	pterm.Info.Printf("Indexes: %d", len(status.Indexes))
	for _, name := range status.Indexes {
		fmt.Printf("  %s\n", name)
	}

	if status.Complete() {
		pterm.Success.Printf("Schema is complete")
		return nil
	}

	for _, name := range status.MissingConstraints {
		pterm.Warning.Printf("Missing constraint: %s", name)
	}
	for _, name := range status.MissingIndexes {
		pterm.Warning.Printf("Missing index: %s", name)
	}
	return nil
}
