package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Commit == "" {
		t.Error("commit must never be empty")
	}
	if info.GoVersion == "" {
		t.Error("go version must be populated")
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("platform should be os/arch, got %q", info.Platform)
	}
}

func TestString(t *testing.T) {
	info := Info{Tag: "dev", Commit: "abc1234", BuiltAt: "2026-01-01"}
	if got := info.String(); !strings.HasPrefix(got, "lore dev") {
		t.Errorf("dev build string = %q", got)
	}

	info.Tag = "1.2.0"
	if got := info.String(); !strings.HasPrefix(got, "lore 1.2.0") {
		t.Errorf("tagged build string = %q", got)
	}
}

func TestShort(t *testing.T) {
	if got := (Info{Commit: "abcdef0123456789"}).Short(); got != "abcdef0" {
		t.Errorf("Short() = %q", got)
	}
	if got := (Info{Commit: "dev"}).Short(); got != "dev" {
		t.Errorf("Short() = %q", got)
	}
}
