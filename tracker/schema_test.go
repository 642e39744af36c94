package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/internal/graphtest"
)

func newTestSchemaManager(t *testing.T) (*SchemaManager, *graphtest.Store) {
	t.Helper()

	store := graphtest.New(t)
	return NewSchemaManager(store, zap.NewNop().Sugar()), store
}

func TestSchemaInitialize(t *testing.T) {
	m, _ := newTestSchemaManager(t)
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Complete())
	assert.Contains(t, status.Constraints, "codebase_unique_key")
	assert.Contains(t, status.Constraints, "ingestion_id_unique")
	assert.Contains(t, status.Indexes, "ingestion_counter_index")
	assert.Empty(t, status.MissingConstraints)
	assert.Empty(t, status.MissingIndexes)
}

func TestSchemaInitializeIdempotent(t *testing.T) {
	m, _ := newTestSchemaManager(t)
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))

	ok, err := m.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSchemaInitializeToleratesAlreadyExists(t *testing.T) {
	m, store := newTestSchemaManager(t)
	ctx := context.Background()

	// Servers without IF NOT EXISTS support report existing elements as
	// errors. Those must not abort the bootstrap.
	store.FailWith("CREATE CONSTRAINT", errors.New(
		"Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists: An equivalent constraint already exists"))

	assert.NoError(t, m.Initialize(ctx))
}

func TestSchemaInitializeFatalError(t *testing.T) {
	m, store := newTestSchemaManager(t)

	store.FailWith("CREATE CONSTRAINT", errors.New("Neo.ClientError.Security.Forbidden"))

	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Forbidden")
}

func TestSchemaVerifyIncomplete(t *testing.T) {
	m, _ := newTestSchemaManager(t)

	ok, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "nothing bootstrapped yet")
}

func TestSchemaStatusReportsMissing(t *testing.T) {
	m, _ := newTestSchemaManager(t)

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Complete())
	assert.Len(t, status.MissingConstraints, 2)
	assert.Len(t, status.MissingIndexes, 1)
}
