// Package tracker records ingestion runs of codebases into the knowledge
// graph and answers NEW, UPDATE, or ERROR for each one.
//
// Every codebase identity owns a single linear chain of Ingestion nodes
// ordered by a gap-free 1-based counter. Each run supersedes the previous
// chain head, so the full audit trail of what was ingested when is always
// reconstructable from the graph alone.
package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/identity"
)

// Status classifies the outcome of one ingestion run.
type Status string

const (
	// StatusNew means the codebase had never been ingested before
	StatusNew Status = "NEW"
	// StatusUpdate means this run superseded a previous one
	StatusUpdate Status = "UPDATE"
	// StatusError means nothing was recorded
	StatusError Status = "ERROR"
)

// Querier is the slice of the graph connector the tracker consumes.
// *graph.Connector satisfies it; tests substitute an in-memory fake.
type Querier interface {
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Metadata describes one recorded ingestion run.
//
// Counter is the authoritative order of runs within a codebase: 1-based,
// gap-free, strictly increasing. Timestamp is advisory wall-clock detail
// and is never used for ordering.
type Metadata struct {
	IngestionID string         `json:"ingestion_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Counter     int64          `json:"ingestion_counter"`
	Extra       map[string]any `json:"metadata,omitempty"`
}

// Result is the outcome of a tracking call.
//
// Success results carry Metadata and Identity; UPDATE additionally names
// the superseded run. ERROR results carry only the failure, never partial
// success fields.
type Result struct {
	Status              Status             `json:"status"`
	Metadata            *Metadata          `json:"ingestion_metadata,omitempty"`
	Identity            *identity.Identity `json:"codebase_identity,omitempty"`
	PreviousIngestionID string             `json:"previous_ingestion_id,omitempty"`
	Err                 error              `json:"-"`
	ErrorMessage        string             `json:"error_message,omitempty"`
}

// IsNew reports a first-ever ingestion of the codebase.
func (r *Result) IsNew() bool { return r.Status == StatusNew }

// IsUpdate reports a run that superseded a previous one.
func (r *Result) IsUpdate() bool { return r.Status == StatusUpdate }

// IsError reports a run where nothing was recorded.
func (r *Result) IsError() bool { return r.Status == StatusError }

// HistoryEntry is one run in a codebase's ingestion chain.
type HistoryEntry struct {
	IngestionID string         `json:"ingestion_id"`
	Counter     int64          `json:"ingestion_counter"`
	Timestamp   time.Time      `json:"timestamp"`
	CommitSHA   string         `json:"commit_sha"`
	Extra       map[string]any `json:"metadata,omitempty"`
}

// CodebaseInfo summarizes a tracked codebase. CommitSHA is the commit of
// the chain head, the most recent run.
type CodebaseInfo struct {
	UniqueKey string `json:"unique_key"`
	RemoteURL string `json:"remote_url"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commit_sha"`
	Count     int64  `json:"ingestion_count"`
}

// errorResult folds a failure into an ERROR result.
func errorResult(err error) *Result {
	return &Result{Status: StatusError, Err: err, ErrorMessage: err.Error()}
}

// marshalExtra serializes the opaque metadata bag for storage. Graph
// properties cannot hold nested maps, so the bag travels as JSON text.
func marshalExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal ingestion metadata")
	}
	return string(data), nil
}

// unmarshalExtra restores a stored metadata bag. A corrupted bag yields
// nil rather than failing the whole history read.
func unmarshalExtra(raw string) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil
	}
	return extra
}
