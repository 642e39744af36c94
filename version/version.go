// Package version exposes build metadata stamped at link time.
package version

import (
	"fmt"
	"runtime"
)

// Stamped via -ldflags "-X github.com/teranos/lore/version.Tag=v1.2.0"
// and friends; untagged local builds keep these placeholders.
var (
	Tag     = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
)

// Info describes the running binary.
type Info struct {
	Tag       string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves build metadata, filling in what the runtime knows.
func Get() Info {
	return Info{
		Tag:       Tag,
		Commit:    Commit,
		BuiltAt:   BuiltAt,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line form shown by `lore version`.
func (i Info) String() string {
	return fmt.Sprintf("lore %s (commit %s, built %s)", i.Tag, i.Commit, i.BuiltAt)
}

// Short returns the abbreviated commit for banners and logs.
func (i Info) Short() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}
