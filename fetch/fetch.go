// Package fetch resolves ingestion inputs to local git checkouts.
// Inputs can be local paths, git URLs (https, ssh, git://), host
// shorthand like github.com/user/repo, or archives, all handled through
// hashicorp/go-getter.
package fetch

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/identity"
)

// Source is a resolved ingestion input.
type Source struct {
	// Path is the local checkout (the original directory or a fetched clone)
	Path string
	// Original is the input as given
	Original string
	// Cloned reports whether the checkout was fetched from a remote source
	Cloned bool
	// TempDir is the temporary directory holding a fetched clone (empty if local)
	TempDir string

	cleanup func()
}

// Cleanup removes any temporary resources behind this source.
// Safe to call multiple times.
func (s *Source) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Resolve turns an input into a local git checkout.
//
// Local paths are used in place after tilde expansion; remote sources are
// fetched into a temp directory that Cleanup removes. Either way the
// result must contain a git repository.
func Resolve(ctx context.Context, input string, log *zap.SugaredLogger) (*Source, error) {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to detect source type of %q", input)
	}

	log.Debugw("Detected ingestion source",
		"input", input,
		"detected", detected)

	parsed, err := url.Parse(detected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse detected source")
	}

	if parsed.Scheme == "file" || parsed.Scheme == "" {
		return resolveLocal(input, parsed, pwd)
	}

	return fetchRemote(ctx, input, detected, log)
}

// IsRemote reports whether the input resolves to a remote source.
func IsRemote(input string) bool {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return false
	}

	parsed, err := url.Parse(detected)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Scheme != "file"
}

func resolveLocal(input string, parsed *url.URL, pwd string) (*Source, error) {
	localPath := input
	if parsed.Scheme == "file" {
		localPath = parsed.Path
	}

	if strings.HasPrefix(localPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to expand home directory")
		}
		localPath = filepath.Join(home, localPath[2:])
	}

	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(pwd, localPath)
	}

	if !identity.IsRepository(localPath) {
		return nil, errors.Wrapf(identity.ErrNotRepository, "local source %s", localPath)
	}

	return &Source{
		Path:     localPath,
		Original: input,
		cleanup:  func() {},
	}, nil
}

func fetchRemote(ctx context.Context, input, detected string, log *zap.SugaredLogger) (*Source, error) {
	repoName := extractRepoName(input)

	log.Infow("Fetching repository",
		"input", input,
		"detected", detected)

	tempDir, err := os.MkdirTemp("", "lore-fetch-"+repoName+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     tempDir,
		Mode:    getter.ClientModeDir,
		Getters: getter.Getters,
	}

	if err := client.Get(); err != nil {
		os.RemoveAll(tempDir)
		return nil, errors.Wrapf(err, "failed to fetch %q", input)
	}

	if !identity.IsRepository(tempDir) {
		os.RemoveAll(tempDir)
		return nil, errors.Wrapf(identity.ErrNotRepository, "fetched content from %q", input)
	}

	log.Infow("Fetch completed",
		"path", tempDir)

	return &Source{
		Path:     tempDir,
		Original: input,
		Cloned:   true,
		TempDir:  tempDir,
		cleanup: func() {
			log.Debugw("Cleaning up fetched repository", "path", tempDir)
			os.RemoveAll(tempDir)
		},
	}, nil
}

// extractRepoName pulls a directory-safe repository name out of a URL or
// path, for temp directory naming.
func extractRepoName(input string) string {
	input = strings.TrimSuffix(input, ".git")
	input = strings.TrimSuffix(input, "/")

	if strings.Contains(input, "/") {
		parts := strings.Split(input, "/")
		for i := len(parts) - 1; i >= 0; i-- {
			if parts[i] != "" {
				return sanitizeRepoName(parts[i])
			}
		}
	}

	return sanitizeRepoName(input)
}

func sanitizeRepoName(name string) string {
	name = strings.TrimPrefix(name, "git@")

	replacer := strings.NewReplacer(
		":", "-",
		"@", "-",
		" ", "-",
	)
	name = replacer.Replace(name)

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "repo"
	}
	return name
}
