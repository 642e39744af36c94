package commands

import (
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/lore/batch"
	"github.com/teranos/lore/config"
	"github.com/teranos/lore/display"
	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/identity"
	"github.com/teranos/lore/logger"
	"github.com/teranos/lore/tracker"
)

// ErrSourceFailures signals that the run completed but at least one source
// came back ERROR. main maps it to exit code 2.
var ErrSourceFailures = errors.New("one or more sources failed")

var (
	ingestMeta    string
	ingestWorkers int
	ingestRate    float64
	ingestBurst   int
	ingestManual  bool
	ingestRemote  string
	ingestBranch  string
	ingestCommit  string
)

// IngestCmd represents the ingest command
var IngestCmd = &cobra.Command{
	Use:   "ingest [source...]",
	Short: "Record ingestion runs for one or more codebases",
	Long: `Record ingestion runs for one or more codebases in the knowledge graph.

Each source is resolved to a codebase identity (remote URL + branch) and one
Ingestion node is appended to that codebase's chain. The first run of an
identity reports NEW; every later run reports UPDATE and supersedes the
previous chain head.

Sources can be local working trees or anything go-getter understands
(github.com/org/repo, git::ssh://..., https://...). Remote sources are
cloned to a temporary directory and removed afterwards.

With --manual no source is resolved: the identity is taken verbatim from
--remote-url, --branch and --commit. Use this when the code was ingested
out of band and only the run needs recording.

Examples:
  lore ingest .                                   # Track the current repository
  lore ingest ~/src/app ~/src/lib                 # Track several local trees
  lore ingest github.com/acme/repo                # Clone and track a remote
  lore ingest . --meta "team=infra reason=backfill"
  lore ingest --manual --remote-url https://github.com/acme/repo.git \
      --branch main --commit 0123456789abcdef0123456789abcdef01234567
  lore ingest ./a ./b ./c --workers 2 --rate 5`,
	Args: cobra.ArbitraryArgs,
	RunE: runIngest,
}

func init() {
	IngestCmd.Flags().StringVar(&ingestMeta, "meta", "", "Extra run metadata as key=value pairs (shell quoting rules)")
	IngestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "Concurrent ingestion workers (default from config)")
	IngestCmd.Flags().Float64Var(&ingestRate, "rate", 0, "Max ingestion records per second (0 = unlimited)")
	IngestCmd.Flags().IntVar(&ingestBurst, "burst", 0, "Rate limiter burst (default from config)")
	IngestCmd.Flags().BoolVar(&ingestManual, "manual", false, "Record a caller-supplied identity instead of resolving sources")
	IngestCmd.Flags().StringVar(&ingestRemote, "remote-url", "", "Remote URL for --manual")
	IngestCmd.Flags().StringVar(&ingestBranch, "branch", "main", "Branch for --manual")
	IngestCmd.Flags().StringVar(&ingestCommit, "commit", "", "Commit SHA for --manual (40 hex characters)")
	IngestCmd.Flags().Bool("json", false, "Output results in JSON format")
}

func runIngest(cmd *cobra.Command, args []string) error {
	extra, err := parseMeta(ingestMeta)
	if err != nil {
		return err
	}

	if ingestManual {
		if len(args) > 0 {
			return errors.New("positional sources cannot be combined with --manual")
		}
		return runIngestManual(cmd, extra)
	}

	if len(args) == 0 {
		return errors.New("at least one source is required (or use --manual)")
	}
	return runIngestSources(cmd, args, extra)
}

// parseMeta turns `key=value key2='quoted value'` into a metadata bag.
func parseMeta(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	words, err := shellquote.Split(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse --meta")
	}

	extra := make(map[string]any, len(words))
	for _, word := range words {
		key, value, found := strings.Cut(word, "=")
		if !found || key == "" {
			return nil, errors.Newf("--meta entry %q is not key=value", word)
		}
		extra[key] = value
	}
	return extra, nil
}

func runIngestManual(cmd *cobra.Command, extra map[string]any) error {
	useJSON := display.ShouldOutputJSON(cmd)
	ctx := cmd.Context()

	// Validate before dialing the store: a bad identity never needs a
	// connection to be refused.
	id, err := identity.New(ingestRemote, ingestBranch, ingestCommit)
	if err != nil {
		res := &tracker.Result{Status: tracker.StatusError, Err: err, ErrorMessage: err.Error()}
		return renderResult(cmd, "manual", res, useJSON)
	}

	tr, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tr.Close(ctx)

	res := tr.TrackManualIngestion(ctx, id, extra)
	return renderResult(cmd, id.String(), res, useJSON)
}

func runIngestSources(cmd *cobra.Command, args []string, extra map[string]any) error {
	useJSON := display.ShouldOutputJSON(cmd)
	ctx := cmd.Context()

	tr, cfg, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer tr.Close(ctx)

	workers := cfg.GetIngestWorkers()
	if cmd.Flags().Changed("workers") {
		workers = ingestWorkers
	}
	ratePerSecond := cfg.Ingest.RatePerSecond
	if cmd.Flags().Changed("rate") {
		ratePerSecond = ingestRate
	}
	burst := cfg.GetIngestBurst()
	if cmd.Flags().Changed("burst") {
		burst = ingestBurst
	}

	runner := batch.NewRunner(tr, workers, ratePerSecond, burst, logger.ComponentLogger("batch"))

	// Long runs pick up config edits live, unless flags pinned the rate.
	if !cmd.Flags().Changed("rate") && !cmd.Flags().Changed("burst") {
		if paths := config.ActivePaths(); len(paths) > 0 {
			if watcher, err := config.NewWatcher(paths[len(paths)-1]); err == nil {
				runner.WatchConfig(watcher)
				watcher.Start()
				defer watcher.Stop()
			}
		}
	}

	if !useJSON {
		pterm.DefaultHeader.WithFullWidth().Printf("Lore - Ingestion Tracking")
		pterm.Println()
		pterm.Info.Printf("Sources: %d", len(args))
		pterm.Info.Printf("Workers: %d", workers)
		if ratePerSecond > 0 {
			pterm.Info.Printf("Rate limit: %.1f/s (burst %d)", ratePerSecond, burst)
		}
		if logger.ShouldOutput(logger.Verbosity, logger.OutputStartup) {
			pterm.Info.Printf("Verbosity: %s", logger.LevelName(logger.Verbosity))
		}
		pterm.Println()
	}

	var spinner *pterm.SpinnerPrinter
	if !useJSON {
		spinner, _ = pterm.DefaultSpinner.Start("Resolving sources and recording ingestion runs...")
	}

	summary, err := runner.Run(ctx, args, extra)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		if !useJSON {
			pterm.Error.Printf("Ingestion run aborted: %v", err)
		}
		return err
	}

	if useJSON {
		if err := display.OutputJSON(summary); err != nil {
			return err
		}
		if summary.Failed > 0 {
			return ErrSourceFailures
		}
		return nil
	}

	renderSummary(summary)
	if summary.Failed > 0 {
		return ErrSourceFailures
	}
	return nil
}

// renderResult prints a single tracking result and maps ERROR to
// ErrSourceFailures so the process exits with code 2.
func renderResult(cmd *cobra.Command, source string, res *tracker.Result, useJSON bool) error {
	if useJSON {
		if err := display.OutputJSON(res); err != nil {
			return err
		}
		if res.IsError() {
			return ErrSourceFailures
		}
		return nil
	}

	if res.IsError() {
		pterm.Error.Printf("%s: %s", source, res.ErrorMessage)
		return ErrSourceFailures
	}

	md := res.Metadata
	pterm.Success.Printf("Recorded ingestion %s", md.IngestionID)
	pterm.Printf("  Codebase:  %s", res.Identity.String())
	pterm.Printf("  Key:       %s", res.Identity.ShortKey())
	pterm.Printf("  Status:    %s", res.Status)
	pterm.Printf("  Counter:   %d", md.Counter)
	if res.IsUpdate() {
		pterm.Printf("  Supersedes: %s", res.PreviousIngestionID)
	}
	return nil
}

func renderSummary(summary *batch.Summary) {
	pterm.Println()
	for i := range summary.Outcomes {
		renderOutcome(&summary.Outcomes[i])
	}
	pterm.Println()

	if logger.ShouldOutput(logger.Verbosity, logger.OutputTiming) {
		pterm.Info.Printf("Timing:")
		for i := range summary.Outcomes {
			o := &summary.Outcomes[i]
			pterm.Printf("  %s: %s", o.Input, o.Duration.Round(time.Millisecond))
		}
		pterm.Println()
	}

	if summary.Failed > 0 {
		pterm.Warning.Printf("Completed with failures")
	} else {
		pterm.Success.Printf("All sources recorded")
	}
	pterm.Println()

	pterm.Info.Printf("Summary:")
	pterm.Printf("  Total:    %d", summary.Total)
	pterm.Printf("  New:      %d", summary.New)
	pterm.Printf("  Updated:  %d", summary.Updated)
	pterm.Printf("  Failed:   %d", summary.Failed)
	pterm.Printf("  Elapsed:  %s", summary.Elapsed.Round(time.Millisecond))
	pterm.Println()
}

func renderOutcome(o *batch.Outcome) {
	if o.Failed() {
		msg := o.ErrorMessage
		if msg == "" && o.Result != nil {
			msg = o.Result.ErrorMessage
		}
		pterm.Error.Printf("%s: %s", o.Input, msg)
		return
	}

	md := o.Result.Metadata
	if o.Result.IsNew() {
		pterm.Success.Printf("%s: NEW run #%d (key %s)", o.Input, md.Counter, o.Result.Identity.ShortKey())
		return
	}
	pterm.Success.Printf("%s: UPDATE run #%d supersedes %s", o.Input, md.Counter, o.Result.PreviousIngestionID)
}
