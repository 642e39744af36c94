package identity

import (
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

	"github.com/teranos/lore/errors"
)

const testRemoteURL = "https://github.com/acme/fixture.git"

// initTestRepo creates a git repository with one commit on main and an
// origin remote. Returns the worktree path and the commit hash.
func initTestRepo(t *testing.T, remoteURL string) (string, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName("main"),
		},
	})
	require.NoError(t, err)

	if remoteURL != "" {
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: git.DefaultRemoteName,
			URLs: []string{remoteURL},
		})
		require.NoError(t, err)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("fixture\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "fixture",
			Email: "fixture@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return dir, hash
}

func TestFromPath(t *testing.T) {
	dir, hash := initTestRepo(t, testRemoteURL)

	id, err := FromPath(dir)
	require.NoError(t, err)

	assert.Equal(t, testRemoteURL, id.RemoteURL)
	assert.Equal(t, "main", id.Branch)
	assert.Equal(t, hash.String(), id.CommitSHA)
	assert.Equal(t, ComputeUniqueKey(testRemoteURL, "main"), id.UniqueKey)
	assert.True(t, id.Valid())
}

func TestFromPathDeterministic(t *testing.T) {
	dir, _ := initTestRepo(t, testRemoteURL)

	id1, err := FromPath(dir)
	require.NoError(t, err)
	id2, err := FromPath(dir)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestFromPathSubdirectory(t *testing.T) {
	dir, hash := initTestRepo(t, testRemoteURL)

	sub := filepath.Join(dir, "pkg", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	id, err := FromPath(sub)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), id.CommitSHA)
}

func TestFromPathNotRepository(t *testing.T) {
	id, err := FromPath(t.TempDir())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRepository))
	assert.Zero(t, id)
}

func TestFromPathNoRemote(t *testing.T) {
	dir, _ := initTestRepo(t, "")

	id, err := FromPath(dir)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRemote))
	assert.Zero(t, id)
}

func TestFromPathDetachedHead(t *testing.T) {
	dir, hash := initTestRepo(t, testRemoteURL)

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: hash}))

	id, err := FromPath(dir)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetachedHead))
	assert.Zero(t, id)
}

func TestIsRepository(t *testing.T) {
	dir, _ := initTestRepo(t, testRemoteURL)

	assert.True(t, IsRepository(dir))
	assert.False(t, IsRepository(t.TempDir()))
}
