package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lore.toml")
	if err := os.WriteFile(path, []byte("[log]\nverbosity = 0\n"), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()
	w.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan *Config, 1)
	w.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	w.Start()

	if err := os.WriteFile(path, []byte("[log]\nverbosity = 2\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg == nil {
			t.Fatal("callback received nil config")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherOwnWriteFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lore.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	if w.checkOwnWrite() {
		t.Error("flag must start clear")
	}
	w.MarkOwnWrite()
	if !w.checkOwnWrite() {
		t.Error("flag must be set after MarkOwnWrite")
	}
	if w.checkOwnWrite() {
		t.Error("checkOwnWrite must clear the flag")
	}
}

func TestIsBackupFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/home/user/.lore/config.toml.back1", true},
		{"lore.toml.back2", true},
		{"lore.toml.back3", true},
		{"lore.toml", false},
		{"config.toml", false},
		{"backup.toml", false},
	}

	for _, tt := range tests {
		if got := isBackupFile(tt.path); got != tt.want {
			t.Errorf("isBackupFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGlobalWatcher(t *testing.T) {
	defer SetGlobalWatcher(nil)

	if GetGlobalWatcher() != nil {
		t.Fatal("expected no global watcher initially")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "lore.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	SetGlobalWatcher(w)
	if GetGlobalWatcher() != w {
		t.Error("global watcher not set")
	}
}
