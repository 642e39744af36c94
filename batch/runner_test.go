package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/lore/config"
	"github.com/teranos/lore/internal/graphtest"
	"github.com/teranos/lore/tracker"
)

func initTestRepo(t *testing.T, remoteURL string) string {
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
		URLs: []string{remoteURL},
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

func newTestRunner(t *testing.T, workers int, ratePerSecond float64) *Runner {
	t.Helper()

	store := graphtest.New(t)
	tr := tracker.NewTracker(store, zap.NewNop().Sugar())
	return NewRunner(tr, workers, ratePerSecond, 1, zap.NewNop().Sugar())
}

func TestRunIngestsAllInputs(t *testing.T) {
	r := newTestRunner(t, 2, 0)

	inputs := []string{
		initTestRepo(t, "https://example.com/org/alpha.git"),
		initTestRepo(t, "https://example.com/org/beta.git"),
		initTestRepo(t, "https://example.com/org/gamma.git"),
	}

	summary, err := r.Run(context.Background(), inputs, map[string]any{"source": "batch"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.New)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Outcomes, 3)
	for _, outcome := range summary.Outcomes {
		assert.False(t, outcome.Failed())
		require.NotNil(t, outcome.Result)
		assert.Equal(t, int64(1), outcome.Result.Metadata.Counter)
	}
}

func TestRunSameCodebaseTwice(t *testing.T) {
	r := newTestRunner(t, 1, 0)
	dir := initTestRepo(t, "https://example.com/org/repo.git")

	summary, err := r.Run(context.Background(), []string{dir, dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunContinuesPastFailures(t *testing.T) {
	r := newTestRunner(t, 2, 0)

	inputs := []string{
		t.TempDir(), // not a repository
		initTestRepo(t, "https://example.com/org/repo.git"),
	}

	summary, err := r.Run(context.Background(), inputs, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Failed)

	// Outcomes keep input order regardless of completion order.
	assert.Equal(t, inputs[0], summary.Outcomes[0].Input)
	assert.True(t, summary.Outcomes[0].Failed())
	assert.False(t, summary.Outcomes[1].Failed())
}

func TestRunCanceledContext(t *testing.T) {
	r := newTestRunner(t, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx, []string{initTestRepo(t, "https://example.com/org/repo.git")}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunRateLimited(t *testing.T) {
	// High enough to finish fast, low enough to exercise the limiter path.
	r := newTestRunner(t, 4, 200)

	inputs := []string{
		initTestRepo(t, "https://example.com/org/alpha.git"),
		initTestRepo(t, "https://example.com/org/beta.git"),
	}

	summary, err := r.Run(context.Background(), inputs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.New)
}

func TestSetRate(t *testing.T) {
	r := newTestRunner(t, 1, 0)
	assert.Equal(t, float64(0), r.Rate(), "zero config rate means unlimited")

	r.SetRate(25, 5)
	assert.Equal(t, float64(25), r.Rate())

	r.SetRate(0, 0)
	assert.Equal(t, float64(0), r.Rate())
}

func TestApplyConfig(t *testing.T) {
	r := newTestRunner(t, 1, 0)

	cfg := &config.Config{}
	cfg.Ingest.RatePerSecond = 12.5

	require.NoError(t, r.applyConfig(cfg))
	assert.Equal(t, 12.5, r.Rate())
}

func TestSummarizeEmpty(t *testing.T) {
	summary := summarize(nil, time.Second)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Failed)
}
