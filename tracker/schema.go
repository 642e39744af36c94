package tracker

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
)

// schemaElement pairs a server-side schema object name with the statement
// that ensures it.
type schemaElement struct {
	name   string
	kind   string // "constraint" or "index"
	cypher string
}

var schemaElements = []schemaElement{
	{"codebase_unique_key", "constraint", CreateCodebaseKeyConstraintQuery},
	{"ingestion_id_unique", "constraint", CreateIngestionIDConstraintQuery},
	{"ingestion_counter_index", "index", CreateIngestionCounterIndexQuery},
}

// SchemaManager bootstraps and inspects the constraints and indexes the
// tracking subgraph relies on. The uniqueness constraints are load-bearing:
// they are what turns a concurrent same-key write race into a hard failure
// instead of a duplicated chain.
type SchemaManager struct {
	q      Querier
	logger *zap.SugaredLogger
}

// NewSchemaManager builds a SchemaManager on top of a graph querier.
func NewSchemaManager(q Querier, log *zap.SugaredLogger) *SchemaManager {
	return &SchemaManager{q: q, logger: log}
}

// Initialize ensures every constraint and index exists. Safe to call any
// number of times. Failures here are fatal for the subsystem and propagate;
// nothing is folded into a Result.
func (m *SchemaManager) Initialize(ctx context.Context) error {
	for _, el := range schemaElements {
		if _, err := m.q.ExecuteWrite(ctx, el.cypher, nil); err != nil {
			if isSchemaExists(err) {
				m.logger.Debugw("Schema element already exists",
					"name", el.name, "kind", el.kind)
				continue
			}
			return errors.Wrapf(err, "failed to create %s %s", el.kind, el.name)
		}
		m.logger.Debugw("Ensured schema element", "name", el.name, "kind", el.kind)
	}

	m.logger.Infow("Schema initialized", "elements", len(schemaElements))
	return nil
}

// Verify reports whether every required constraint and index exists.
// False with a nil error means the store is reachable but incomplete.
func (m *SchemaManager) Verify(ctx context.Context) (bool, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Complete(), nil
}

// SchemaStatus names the schema objects present and missing.
type SchemaStatus struct {
	Constraints        []string `json:"constraints"`
	Indexes            []string `json:"indexes"`
	MissingConstraints []string `json:"missing_constraints"`
	MissingIndexes     []string `json:"missing_indexes"`
}

// Complete reports whether nothing required is missing.
func (s *SchemaStatus) Complete() bool {
	return len(s.MissingConstraints) == 0 && len(s.MissingIndexes) == 0
}

// Status inspects the store and reports present and missing schema objects.
func (m *SchemaManager) Status(ctx context.Context) (*SchemaStatus, error) {
	constraints, err := m.names(ctx, ShowConstraintsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list constraints")
	}
	indexes, err := m.names(ctx, ShowIndexesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list indexes")
	}

	status := &SchemaStatus{Constraints: constraints, Indexes: indexes}
	for _, el := range schemaElements {
		switch el.kind {
		case "constraint":
			if !contains(constraints, el.name) {
				status.MissingConstraints = append(status.MissingConstraints, el.name)
			}
		case "index":
			if !contains(indexes, el.name) {
				status.MissingIndexes = append(status.MissingIndexes, el.name)
			}
		}
	}
	return status, nil
}

func (m *SchemaManager) names(ctx context.Context, cypher string) ([]string, error) {
	records, err := m.q.ExecuteRead(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		if name, ok := rec["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// isSchemaExists recognizes the duplicate-schema errors of servers that
// predate IF NOT EXISTS.
func isSchemaExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "equivalentschemarulealreadyexists")
}

func contains(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}
