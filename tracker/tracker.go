package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/graph"
	"github.com/teranos/lore/identity"
)

// Tracker records ingestion runs and answers chain queries. Safe for
// concurrent use; all correctness under same-key races is delegated to
// the store (see RecordIngestionQuery).
type Tracker struct {
	q      Querier
	logger *zap.SugaredLogger

	closed      atomic.Bool
	ownsQuerier bool
}

// NewTracker builds a Tracker on an already-bootstrapped store. The caller
// keeps ownership of the querier.
func NewTracker(q Querier, log *zap.SugaredLogger) *Tracker {
	return &Tracker{q: q, logger: log}
}

// NewTrackerWithSchema bootstraps the schema first and then builds the
// tracker. A schema failure is fatal: it propagates and no tracker is
// returned.
func NewTrackerWithSchema(ctx context.Context, q Querier, log *zap.SugaredLogger) (*Tracker, error) {
	if err := NewSchemaManager(q, log).Initialize(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to bootstrap tracking schema")
	}
	return NewTracker(q, log), nil
}

// NewTrackerWithConnector is NewTrackerWithSchema with querier ownership
// handed over: Close also closes the underlying connector. Composition
// roots use this form.
func NewTrackerWithConnector(ctx context.Context, q Querier, log *zap.SugaredLogger) (*Tracker, error) {
	t, err := NewTrackerWithSchema(ctx, q, log)
	if err != nil {
		return nil, err
	}
	t.ownsQuerier = true
	return t, nil
}

// TrackIngestion resolves the codebase identity of the git repository at
// path and records one ingestion run. Resolution and persistence failures
// are folded into an ERROR result; so is a call after Close.
func (t *Tracker) TrackIngestion(ctx context.Context, path string, extra map[string]any) *Result {
	if t.closed.Load() {
		return errorResult(errors.Wrap(errors.ErrClosed, "ingestion tracker"))
	}

	id, err := identity.FromPath(path)
	if err != nil {
		t.logger.Warnw("Failed to resolve codebase identity",
			"path", path, "error", err)
		return errorResult(err)
	}

	return t.record(ctx, id, extra)
}

// TrackManualIngestion records one run for a caller-supplied identity,
// skipping git resolution. Invalid identities are rejected fail-closed:
// nothing is persisted and an ERROR result is returned.
func (t *Tracker) TrackManualIngestion(ctx context.Context, id identity.Identity, extra map[string]any) *Result {
	if t.closed.Load() {
		return errorResult(errors.Wrap(errors.ErrClosed, "ingestion tracker"))
	}

	if !id.Valid() {
		return errorResult(errors.Wrapf(identity.ErrInvalidIdentity,
			"refusing to record %q", id.String()))
	}

	return t.record(ctx, id, extra)
}

// record is the shared persistence path behind both tracking entry points.
// One statement, one transaction: the store decides NEW versus UPDATE.
func (t *Tracker) record(ctx context.Context, id identity.Identity, extra map[string]any) *Result {
	md := Metadata{
		IngestionID: uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Extra:       extra,
	}

	metaJSON, err := marshalExtra(extra)
	if err != nil {
		return errorResult(err)
	}

	records, err := t.q.ExecuteWrite(ctx, RecordIngestionQuery, map[string]any{
		"unique_key":   id.UniqueKey,
		"remote_url":   id.RemoteURL,
		"branch":       id.Branch,
		"commit_sha":   id.CommitSHA,
		"ingestion_id": md.IngestionID,
		"timestamp":    md.Timestamp,
		"metadata":     metaJSON,
	})
	if err != nil {
		t.logger.Errorw("Failed to record ingestion",
			"unique_key", id.UniqueKey,
			"error", err)
		return errorResult(errors.Wrapf(err, "failed to record ingestion for %s", id.ShortKey()))
	}
	if len(records) != 1 {
		return errorResult(errors.Newf("record statement returned %d rows, want 1", len(records)))
	}

	rec := records[0]
	md.Counter = graph.Int64Value(rec, "ingestion_counter")

	result := &Result{
		Metadata:            &md,
		Identity:            &id,
		PreviousIngestionID: graph.StringValue(rec, "previous_ingestion_id"),
	}
	if result.PreviousIngestionID == "" {
		result.Status = StatusNew
	} else {
		result.Status = StatusUpdate
	}

	t.logger.Infow("Recorded ingestion",
		"unique_key", id.UniqueKey,
		"ingestion_id", md.IngestionID,
		"ingestion_counter", md.Counter,
		"status", string(result.Status))
	return result
}

// History returns every run of a codebase ascending by counter. An unknown
// key yields an empty slice: absence is not failure.
func (t *Tracker) History(ctx context.Context, uniqueKey string) ([]HistoryEntry, error) {
	if t.closed.Load() {
		return nil, errors.Wrap(errors.ErrClosed, "ingestion tracker")
	}

	records, err := t.q.ExecuteRead(ctx, IngestionHistoryQuery, map[string]any{
		"unique_key": uniqueKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ingestion history")
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			IngestionID: graph.StringValue(rec, "ingestion_id"),
			Counter:     graph.Int64Value(rec, "ingestion_counter"),
			Timestamp:   graph.TimeValue(rec, "timestamp"),
			CommitSHA:   graph.StringValue(rec, "commit_sha"),
			Extra:       unmarshalExtra(graph.StringValue(rec, "metadata")),
		})
	}
	return entries, nil
}

// Info summarizes a codebase: identity fields, run count, and the commit
// of the chain head. An unknown key yields (nil, nil).
func (t *Tracker) Info(ctx context.Context, uniqueKey string) (*CodebaseInfo, error) {
	if t.closed.Load() {
		return nil, errors.Wrap(errors.ErrClosed, "ingestion tracker")
	}

	records, err := t.q.ExecuteRead(ctx, CodebaseInfoQuery, map[string]any{
		"unique_key": uniqueKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load codebase info")
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	return &CodebaseInfo{
		UniqueKey: graph.StringValue(rec, "unique_key"),
		RemoteURL: graph.StringValue(rec, "remote_url"),
		Branch:    graph.StringValue(rec, "branch"),
		CommitSHA: graph.StringValue(rec, "commit_sha"),
		Count:     graph.Int64Value(rec, "ingestion_count"),
	}, nil
}

// Close marks the tracker closed. Every later call fails fast with
// ErrClosed. When the tracker owns its querier the underlying connector
// is closed too. Idempotent.
func (t *Tracker) Close(ctx context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.logger.Debugw("Ingestion tracker closed")
	if t.ownsQuerier {
		return t.q.Close(ctx)
	}
	return nil
}
