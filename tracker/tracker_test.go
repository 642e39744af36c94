package tracker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/identity"
	"github.com/teranos/lore/internal/graphtest"
)

const (
	testRemoteURL = "https://example.com/org/repo.git"
	testBranch    = "main"
)

var (
	testSHA1 = strings.Repeat("a", 40)
	testSHA2 = strings.Repeat("b", 40)
)

func newTestTracker(t *testing.T) (*Tracker, *graphtest.Store) {
	t.Helper()

	store := graphtest.New(t)
	return NewTracker(store, zap.NewNop().Sugar()), store
}

func mustIdentity(t *testing.T, sha string) identity.Identity {
	t.Helper()

	id, err := identity.New(testRemoteURL, testBranch, sha)
	require.NoError(t, err)
	return id
}

// initTestRepo creates a git repository with one commit and a configured
// origin remote, for exercising the path-based tracking entry point.
func initTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName("main"),
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{testRemoteURL},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# repo\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir
}

func TestTrackManualIngestionFirstIsNew(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	id := mustIdentity(t, testSHA1)
	result := tr.TrackManualIngestion(ctx, id, nil)

	require.True(t, result.IsNew(), "first ingestion must be NEW, got %s: %s", result.Status, result.ErrorMessage)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, int64(1), result.Metadata.Counter)
	assert.NotEmpty(t, result.Metadata.IngestionID)
	assert.False(t, result.Metadata.Timestamp.IsZero())
	assert.Empty(t, result.PreviousIngestionID)
	require.NotNil(t, result.Identity)
	assert.Equal(t, id.UniqueKey, result.Identity.UniqueKey)
}

func TestTrackManualIngestionChain(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	first := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), map[string]any{
		"source": "ci",
		"files":  12,
	})
	require.True(t, first.IsNew())

	second := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA2), nil)
	require.True(t, second.IsUpdate(), "second ingestion must be UPDATE, got %s", second.Status)
	assert.Equal(t, int64(2), second.Metadata.Counter)
	assert.Equal(t, first.Metadata.IngestionID, second.PreviousIngestionID)

	key := first.Identity.UniqueKey

	info, err := tr.Info(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, testRemoteURL, info.RemoteURL)
	assert.Equal(t, testBranch, info.Branch)
	assert.Equal(t, int64(2), info.Count)
	assert.Equal(t, testSHA2, info.CommitSHA, "info must report the chain head's commit")

	entries, err := tr.History(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Counter)
	assert.Equal(t, int64(2), entries[1].Counter)
	assert.Equal(t, testSHA1, entries[0].CommitSHA)
	assert.Equal(t, testSHA2, entries[1].CommitSHA)
	assert.Equal(t, "ci", entries[0].Extra["source"])
	assert.Equal(t, float64(12), entries[0].Extra["files"])
	assert.Nil(t, entries[1].Extra)
}

func TestTrackManualIngestionInvalidIdentity(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   identity.Identity
	}{
		{name: "zero identity", id: identity.Identity{}},
		{name: "forged key", id: identity.Identity{
			RemoteURL: testRemoteURL,
			Branch:    testBranch,
			CommitSHA: testSHA1,
			UniqueKey: strings.Repeat("0", 64),
		}},
		{name: "missing commit", id: identity.Identity{
			RemoteURL: testRemoteURL,
			Branch:    testBranch,
			UniqueKey: identity.ComputeUniqueKey(testRemoteURL, testBranch),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tr.TrackManualIngestion(ctx, tt.id, nil)
			require.True(t, result.IsError())
			require.Error(t, result.Err)
			assert.True(t, errors.Is(result.Err, identity.ErrInvalidIdentity))
			assert.Nil(t, result.Metadata, "rejected runs must not carry success fields")
		})
	}

	// Nothing was persisted for the well-formed key.
	entries, err := tr.History(ctx, identity.ComputeUniqueKey(testRemoteURL, testBranch))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackIngestionFromRepository(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()
	dir := initTestRepo(t)

	result := tr.TrackIngestion(ctx, dir, nil)
	require.True(t, result.IsNew(), "got %s: %s", result.Status, result.ErrorMessage)
	require.NotNil(t, result.Identity)
	assert.Equal(t, testRemoteURL, result.Identity.RemoteURL)
	assert.Equal(t, "main", result.Identity.Branch)
	assert.Len(t, result.Identity.CommitSHA, 40)

	// Re-ingesting the same checkout is an update, even at the same commit.
	again := tr.TrackIngestion(ctx, dir, nil)
	require.True(t, again.IsUpdate())
	assert.Equal(t, int64(2), again.Metadata.Counter)
	assert.Equal(t, result.Identity.CommitSHA, again.Identity.CommitSHA)
}

func TestTrackIngestionNotARepository(t *testing.T) {
	tr, _ := newTestTracker(t)

	result := tr.TrackIngestion(context.Background(), t.TempDir(), nil)
	require.True(t, result.IsError())
	assert.True(t, errors.Is(result.Err, identity.ErrNotRepository))
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestCrossIdentityIsolation(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	mainID := mustIdentity(t, testSHA1)
	devID, err := identity.New(testRemoteURL, "dev", testSHA1)
	require.NoError(t, err)
	require.NotEqual(t, mainID.UniqueKey, devID.UniqueKey)

	require.True(t, tr.TrackManualIngestion(ctx, mainID, nil).IsNew())
	require.True(t, tr.TrackManualIngestion(ctx, mainID, nil).IsUpdate())

	// A different branch is a different codebase with its own chain.
	devResult := tr.TrackManualIngestion(ctx, devID, nil)
	require.True(t, devResult.IsNew())
	assert.Equal(t, int64(1), devResult.Metadata.Counter)

	mainHistory, err := tr.History(ctx, mainID.UniqueKey)
	require.NoError(t, err)
	devHistory, err := tr.History(ctx, devID.UniqueKey)
	require.NoError(t, err)
	assert.Len(t, mainHistory, 2)
	assert.Len(t, devHistory, 1)
}

func TestHistoryUnknownKey(t *testing.T) {
	tr, _ := newTestTracker(t)

	entries, err := tr.History(context.Background(), strings.Repeat("f", 64))
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestInfoUnknownKey(t *testing.T) {
	tr, _ := newTestTracker(t)

	info, err := tr.Info(context.Background(), strings.Repeat("f", 64))
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestPersistenceFailureYieldsErrorResult(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	store.FailWith("MERGE (cb:Codebase", errors.New("connection reset"))

	result := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), nil)
	require.True(t, result.IsError())
	require.Error(t, result.Err)
	assert.Contains(t, result.ErrorMessage, "connection reset")
	assert.Nil(t, result.Metadata)

	// The failed run must leave no trace: the next one is still the first.
	store.FailWith("MERGE (cb:Codebase", nil)
	recovered := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), nil)
	require.True(t, recovered.IsNew())
	assert.Equal(t, int64(1), recovered.Metadata.Counter)
}

func TestReadFailurePropagates(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	store.FailWith("ORDER BY ing.ingestion_counter", errors.New("session expired"))
	_, err := tr.History(ctx, strings.Repeat("f", 64))
	require.Error(t, err)

	store.FailWith("count(ing)", errors.New("session expired"))
	_, err = tr.Info(ctx, strings.Repeat("f", 64))
	require.Error(t, err)
}

func TestClosedTrackerFailsFast(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	require.True(t, tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), nil).IsNew())
	require.NoError(t, tr.Close(ctx))

	result := tr.TrackIngestion(ctx, t.TempDir(), nil)
	require.True(t, result.IsError())
	assert.True(t, errors.IsClosedError(result.Err))

	result = tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA2), nil)
	require.True(t, result.IsError())
	assert.True(t, errors.IsClosedError(result.Err))

	_, err := tr.History(ctx, strings.Repeat("f", 64))
	assert.True(t, errors.IsClosedError(err))
	_, err = tr.Info(ctx, strings.Repeat("f", 64))
	assert.True(t, errors.IsClosedError(err))

	assert.NoError(t, tr.Close(ctx), "close is idempotent")

	// The tracker did not own the store, so the store stays usable.
	_, err = store.ExecuteRead(ctx, ShowConstraintsQuery, nil)
	assert.NoError(t, err)
}

func TestCloseClosesOwnedConnector(t *testing.T) {
	store := graphtest.New(t)
	ctx := context.Background()

	tr, err := NewTrackerWithConnector(ctx, store, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, tr.Close(ctx))

	_, err = store.ExecuteRead(ctx, ShowConstraintsQuery, nil)
	assert.True(t, errors.IsClosedError(err))
}

func TestNewTrackerWithSchemaBootstrapFailure(t *testing.T) {
	store := graphtest.New(t)
	store.FailWith("CREATE CONSTRAINT", errors.New("Neo.ClientError.Security.Forbidden"))

	tr, err := NewTrackerWithSchema(context.Background(), store, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Nil(t, tr)
}

func TestNewTrackerWithSchemaBootstraps(t *testing.T) {
	store := graphtest.New(t)
	ctx := context.Background()

	tr, err := NewTrackerWithSchema(ctx, store, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, tr)

	ok, err := NewSchemaManager(store, zap.NewNop().Sugar()).Verify(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChainStaysLinear(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		result := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), nil)
		require.False(t, result.IsError(), result.ErrorMessage)
		ids = append(ids, result.Metadata.IngestionID)
	}

	key := identity.ComputeUniqueKey(testRemoteURL, testBranch)
	assert.Equal(t, ids, store.ChainIDs(key), "SUPERSEDED_BY walk must visit every run in order")

	entries, err := tr.History(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Counter)
		assert.Equal(t, ids[i], entry.IngestionID)
	}
}

func TestConcurrentRecordsStayGapFree(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	const workers = 4
	const perWorker = 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*Result
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				result := tr.TrackManualIngestion(ctx, mustIdentity(t, testSHA1), nil)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	newCount := 0
	for _, result := range results {
		require.False(t, result.IsError(), result.ErrorMessage)
		if result.IsNew() {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one run observes an empty chain")

	key := identity.ComputeUniqueKey(testRemoteURL, testBranch)
	entries, err := tr.History(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, workers*perWorker)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Counter, "counters must be gap-free")
	}
	assert.Len(t, store.ChainIDs(key), workers*perWorker)
}
