package identity

import (
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/teranos/lore/errors"
)

// FromPath resolves the identity of the git repository containing path.
//
// The remote URL comes from the origin remote (first configured URL), the
// branch from HEAD's name, and the commit SHA from the HEAD commit. A
// detached HEAD cannot name a branch and is rejected. The inspection is
// read-only; repository state is never modified.
func FromPath(path string) (Identity, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Identity{}, errors.Wrapf(ErrNotRepository, "path %s", path)
		}
		return Identity{}, errors.Wrapf(err, "failed to open repository at %s", path)
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return Identity{}, errors.Wrapf(ErrNoRemote, "path %s", path)
		}
		return Identity{}, errors.Wrapf(err, "failed to read remotes at %s", path)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || strings.TrimSpace(urls[0]) == "" {
		return Identity{}, errors.Wrapf(ErrNoRemote, "origin remote has no url at %s", path)
	}

	head, err := repo.Head()
	if err != nil {
		return Identity{}, errors.Wrapf(err, "failed to resolve HEAD at %s", path)
	}
	if !head.Name().IsBranch() {
		return Identity{}, errors.Wrapf(ErrDetachedHead, "path %s", path)
	}

	return New(urls[0], head.Name().Short(), head.Hash().String())
}

// IsRepository reports whether path is inside a git repository.
func IsRepository(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}
