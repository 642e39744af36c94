// Package identity derives stable codebase identities for ingestion tracking.
//
// A codebase is identified by its remote URL and branch. The unique key is a
// SHA-256 digest over both, so every ingestion run of the same url+branch
// maps to the same Codebase node regardless of commit. The commit SHA travels
// alongside as run-level detail.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/teranos/lore/errors"
)

// Sentinel errors for identity construction and resolution.
var (
	// ErrInvalidIdentity indicates manual identity fields failed validation
	ErrInvalidIdentity = errors.New("invalid codebase identity")

	// ErrNotRepository indicates the path is not inside a git repository
	ErrNotRepository = errors.New("not a git repository")

	// ErrNoRemote indicates the repository has no usable origin remote
	ErrNoRemote = errors.New("repository has no origin remote")

	// ErrDetachedHead indicates HEAD does not point at a branch
	ErrDetachedHead = errors.New("repository HEAD is detached")
)

// keySeparator joins url and branch before hashing. A url cannot contain a
// NUL byte, so ("a", "b/c") and ("a/b", "c") never collide.
const keySeparator = "\x00"

// Identity pins one codebase for ingestion tracking. Values are immutable
// after construction; build them with New or FromPath.
type Identity struct {
	RemoteURL string `json:"remote_url"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commit_sha"`
	UniqueKey string `json:"unique_key"`
}

// ComputeUniqueKey derives the content-addressed key for a url+branch pair.
// Inputs are trimmed of surrounding whitespace; no other normalization is
// applied, so equality is bytewise on the trimmed values.
func ComputeUniqueKey(remoteURL, branch string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(remoteURL) + keySeparator + strings.TrimSpace(branch)))
	return hex.EncodeToString(h[:])
}

// New builds an Identity from caller-supplied fields.
//
// Validation is fail-closed: an empty url or branch, or a commit SHA that is
// not exactly 40 hex characters, yields ErrInvalidIdentity. The SHA is
// lowercased before validation so uppercase git output is accepted.
func New(remoteURL, branch, commitSHA string) (Identity, error) {
	remoteURL = strings.TrimSpace(remoteURL)
	branch = strings.TrimSpace(branch)
	commitSHA = strings.ToLower(strings.TrimSpace(commitSHA))

	if remoteURL == "" {
		return Identity{}, errors.Wrap(ErrInvalidIdentity, "remote url is empty")
	}
	if branch == "" {
		return Identity{}, errors.Wrap(ErrInvalidIdentity, "branch is empty")
	}
	if !isCommitSHA(commitSHA) {
		return Identity{}, errors.Wrapf(ErrInvalidIdentity, "commit sha %q is not 40 hex characters", commitSHA)
	}

	return Identity{
		RemoteURL: remoteURL,
		Branch:    branch,
		CommitSHA: commitSHA,
		UniqueKey: ComputeUniqueKey(remoteURL, branch),
	}, nil
}

// Valid reports whether the identity was produced by a constructor.
func (id Identity) Valid() bool {
	return id.RemoteURL != "" && id.Branch != "" && isCommitSHA(id.CommitSHA) &&
		id.UniqueKey == ComputeUniqueKey(id.RemoteURL, id.Branch)
}

// ShortKey returns a 12-character unique key prefix for display.
func (id Identity) ShortKey() string {
	if len(id.UniqueKey) < 12 {
		return id.UniqueKey
	}
	return id.UniqueKey[:12]
}

func (id Identity) String() string {
	return id.RemoteURL + "@" + id.Branch
}

// IsUniqueKey reports whether s has the shape of a unique key, 64 lowercase
// hex characters. It says nothing about whether the key is tracked.
func IsUniqueKey(s string) bool {
	return len(s) == 64 && isHex(s)
}

func isCommitSHA(s string) bool {
	return len(s) == 40 && isHex(s)
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
