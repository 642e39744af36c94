// Package graphtest provides an in-memory stand-in for the graph store.
// It recognizes the statements the tracker issues by their shape and
// applies the same semantics the Cypher would: counter assignment, chain
// linking, and uniqueness enforcement. Tests exercise tracker logic
// against it without a running Neo4j.
package graphtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teranos/lore/errors"
)

type ingestion struct {
	id           string
	counter      int64
	timestamp    time.Time
	commitSHA    string
	metadata     string
	supersededBy string
}

type codebase struct {
	uniqueKey  string
	remoteURL  string
	branch     string
	createdAt  time.Time
	ingestions []*ingestion
}

// Store is an in-memory Querier. Safe for concurrent use; each write
// runs under one lock, mirroring the serialization the real store
// provides through transactions and constraints.
type Store struct {
	mu         sync.Mutex
	codebases  map[string]*codebase
	ids        map[string]bool
	schemaRows map[string][]string // "constraint" and "index" name lists
	failures   map[string]error
	closed     bool
}

// New creates a Store and registers cleanup via t.Cleanup().
func New(t *testing.T) *Store {
	t.Helper()

	s := NewStore()
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

// NewStore creates a Store without test wiring.
func NewStore() *Store {
	return &Store{
		codebases:  make(map[string]*codebase),
		ids:        make(map[string]bool),
		schemaRows: map[string][]string{"constraint": {}, "index": {}},
		failures:   make(map[string]error),
	}
}

// FailWith makes every statement containing substr return err instead of
// executing. Passing a nil err clears the injection.
func (s *Store) FailWith(substr string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, substr)
		return
	}
	s.failures[substr] = err
}

func (s *Store) injected(cypher string) error {
	for substr, err := range s.failures {
		if strings.Contains(cypher, substr) {
			return err
		}
	}
	return nil
}

func (s *Store) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.Wrap(errors.ErrClosed, "graph store")
	}
	if err := s.injected(cypher); err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(cypher, "CREATE CONSTRAINT"):
		s.addSchemaElement("constraint", cypher)
		return nil, nil
	case strings.Contains(cypher, "CREATE INDEX"):
		s.addSchemaElement("index", cypher)
		return nil, nil
	case strings.Contains(cypher, "MERGE (cb:Codebase"):
		return s.recordIngestion(params)
	default:
		return nil, errors.Newf("graphtest: unrecognized write statement: %s", firstLine(cypher))
	}
}

func (s *Store) ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.Wrap(errors.ErrClosed, "graph store")
	}
	if err := s.injected(cypher); err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(cypher, "SHOW CONSTRAINTS"):
		return nameRows(s.schemaRows["constraint"]), nil
	case strings.Contains(cypher, "SHOW INDEXES"):
		return nameRows(s.schemaRows["index"]), nil
	case strings.Contains(cypher, "ORDER BY ing.ingestion_counter"):
		return s.history(params)
	case strings.Contains(cypher, "count(ing)"):
		return s.info(params)
	default:
		return nil, errors.Newf("graphtest: unrecognized read statement: %s", firstLine(cypher))
	}
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// recordIngestion applies the record statement's semantics: merge the
// codebase, find the chain head, assign the next counter, and link
// SUPERSEDED_BY from the superseded run.
func (s *Store) recordIngestion(params map[string]any) ([]map[string]any, error) {
	id, _ := params["ingestion_id"].(string)
	if s.ids[id] {
		return nil, errors.Wrapf(errors.ErrConflict,
			"uniqueness constraint violated: ingestion_id %s", id)
	}

	key, _ := params["unique_key"].(string)
	ts, _ := params["timestamp"].(time.Time)

	cb, ok := s.codebases[key]
	if !ok {
		cb = &codebase{
			uniqueKey: key,
			createdAt: ts,
		}
		cb.remoteURL, _ = params["remote_url"].(string)
		cb.branch, _ = params["branch"].(string)
		s.codebases[key] = cb
	}

	var prev *ingestion
	for _, ing := range cb.ingestions {
		if ing.supersededBy == "" {
			prev = ing
			break
		}
	}

	ing := &ingestion{
		id:        id,
		counter:   1,
		timestamp: ts,
	}
	ing.commitSHA, _ = params["commit_sha"].(string)
	ing.metadata, _ = params["metadata"].(string)

	row := map[string]any{
		"ingestion_id":          ing.id,
		"previous_ingestion_id": nil,
	}
	if prev != nil {
		ing.counter = prev.counter + 1
		prev.supersededBy = ing.id
		row["previous_ingestion_id"] = prev.id
	}
	row["ingestion_counter"] = ing.counter

	cb.ingestions = append(cb.ingestions, ing)
	s.ids[id] = true
	return []map[string]any{row}, nil
}

func (s *Store) history(params map[string]any) ([]map[string]any, error) {
	key, _ := params["unique_key"].(string)
	cb, ok := s.codebases[key]
	if !ok {
		return nil, nil
	}

	rows := make([]map[string]any, 0, len(cb.ingestions))
	for _, ing := range cb.ingestions {
		rows = append(rows, map[string]any{
			"ingestion_id":      ing.id,
			"ingestion_counter": ing.counter,
			"timestamp":         ing.timestamp,
			"commit_sha":        ing.commitSHA,
			"metadata":          ing.metadata,
		})
	}
	return rows, nil
}

func (s *Store) info(params map[string]any) ([]map[string]any, error) {
	key, _ := params["unique_key"].(string)
	cb, ok := s.codebases[key]
	if !ok {
		return nil, nil
	}

	row := map[string]any{
		"unique_key":      cb.uniqueKey,
		"remote_url":      cb.remoteURL,
		"branch":          cb.branch,
		"ingestion_count": int64(len(cb.ingestions)),
		"commit_sha":      nil,
	}
	if n := len(cb.ingestions); n > 0 {
		row["commit_sha"] = cb.ingestions[n-1].commitSHA
	}
	return []map[string]any{row}, nil
}

// ChainIDs walks the SUPERSEDED_BY links from the first run and returns
// the ingestion IDs in link order. A broken or branching chain shows up
// as a walk shorter than the run count.
func (s *Store) ChainIDs(uniqueKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.codebases[uniqueKey]
	if !ok || len(cb.ingestions) == 0 {
		return nil
	}

	byID := make(map[string]*ingestion, len(cb.ingestions))
	var head *ingestion
	for _, ing := range cb.ingestions {
		byID[ing.id] = ing
		if ing.counter == 1 {
			head = ing
		}
	}
	if head == nil {
		return nil
	}

	var order []string
	for ing := head; ing != nil; ing = byID[ing.supersededBy] {
		order = append(order, ing.id)
		if ing.supersededBy == "" {
			break
		}
	}
	return order
}

// addSchemaElement extracts the element name from a create statement,
// e.g. "CREATE CONSTRAINT codebase_unique_key IF NOT EXISTS ...".
func (s *Store) addSchemaElement(kind, cypher string) {
	fields := strings.Fields(cypher)
	if len(fields) < 3 {
		return
	}
	name := fields[2]
	for _, existing := range s.schemaRows[kind] {
		if existing == name {
			return
		}
	}
	s.schemaRows[kind] = append(s.schemaRows[kind], name)
}

func nameRows(names []string) []map[string]any {
	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]any{"name": name})
	}
	return rows
}

func firstLine(cypher string) string {
	cypher = strings.TrimSpace(cypher)
	if i := strings.IndexByte(cypher, '\n'); i >= 0 {
		return cypher[:i]
	}
	return cypher
}
