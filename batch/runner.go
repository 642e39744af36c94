// Package batch runs ingestion over many sources concurrently. Workers
// share one tracker; a rate limiter caps record throughput and can be
// retuned live from config reloads.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/teranos/lore/config"
	"github.com/teranos/lore/fetch"
	"github.com/teranos/lore/tracker"
)

// Outcome is the result of one input in a batch run.
type Outcome struct {
	Input        string          `json:"input"`
	Result       *tracker.Result `json:"result,omitempty"` // nil when resolution failed before tracking
	Err          error           `json:"-"`                // resolution or cancellation failure
	ErrorMessage string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
}

// Failed reports whether the input produced no recorded ingestion.
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Result == nil || o.Result.IsError()
}

// Summary aggregates a batch run.
type Summary struct {
	Total    int           `json:"total"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Outcomes []Outcome     `json:"outcomes"`
}

// Runner executes batch ingestion runs.
type Runner struct {
	tracker *tracker.Tracker
	logger  *zap.SugaredLogger
	workers int
	limiter *rate.Limiter
}

// NewRunner creates a batch runner. workers caps concurrent ingestions;
// ratePerSecond caps record throughput (0 = unlimited).
func NewRunner(tr *tracker.Tracker, workers int, ratePerSecond float64, burst int, log *zap.SugaredLogger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}

	return &Runner{
		tracker: tr,
		logger:  log,
		workers: workers,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SetRate retunes the rate limiter. Safe to call during a run; queued
// waiters pick up the new limit.
func (r *Runner) SetRate(ratePerSecond float64, burst int) {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	r.limiter.SetLimit(limit)
	r.limiter.SetBurst(burst)
	r.logger.Infow("Ingestion rate retuned",
		"rate_per_second", ratePerSecond,
		"burst", burst)
}

// Rate returns the current limit in records per second (0 = unlimited).
func (r *Runner) Rate() float64 {
	limit := r.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}

// applyConfig applies the ingest section of a loaded config.
func (r *Runner) applyConfig(cfg *config.Config) error {
	r.SetRate(cfg.Ingest.RatePerSecond, cfg.GetIngestBurst())
	return nil
}

// WatchConfig retunes the runner whenever the watched config reloads.
func (r *Runner) WatchConfig(w *config.Watcher) {
	w.OnReload(r.applyConfig)
}

// Run ingests every input and returns a per-input summary. Individual
// failures do not stop the run; only context cancellation does, and the
// summary then covers the inputs processed so far.
func (r *Runner) Run(ctx context.Context, inputs []string, extra map[string]any) (*Summary, error) {
	started := time.Now()
	outcomes := make([]Outcome, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	var mu sync.Mutex
	for i, input := range inputs {
		g.Go(func() error {
			outcome := r.ingestOne(gctx, input, extra)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()

			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	runErr := g.Wait()

	summary := summarize(outcomes, time.Since(started))
	r.logger.Infow("Batch ingestion finished",
		"total_count", summary.Total,
		"new", summary.New,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"duration_ms", summary.Elapsed.Milliseconds())
	return summary, runErr
}

func (r *Runner) ingestOne(ctx context.Context, input string, extra map[string]any) Outcome {
	started := time.Now()
	outcome := Outcome{Input: input}

	if err := r.limiter.Wait(ctx); err != nil {
		outcome.Err = err
		outcome.Duration = time.Since(started)
		return outcome
	}

	src, err := fetch.Resolve(ctx, input, r.logger)
	if err != nil {
		r.logger.Warnw("Failed to resolve batch input",
			"source", input, "error", err)
		outcome.Err = err
		outcome.Duration = time.Since(started)
		return outcome
	}
	defer src.Cleanup()

	outcome.Result = r.tracker.TrackIngestion(ctx, src.Path, extra)
	outcome.Duration = time.Since(started)
	return outcome
}

func summarize(outcomes []Outcome, elapsed time.Duration) *Summary {
	summary := &Summary{
		Total:    len(outcomes),
		Elapsed:  elapsed,
		Outcomes: outcomes,
	}
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			o.ErrorMessage = o.Err.Error()
		}
		switch {
		case o.Failed():
			summary.Failed++
		case o.Result.IsNew():
			summary.New++
		default:
			summary.Updated++
		}
	}
	return summary
}
