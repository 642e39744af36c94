package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/logger"
)

// createBackup rotates configPath into .back1/.back2/.back3 before it is
// overwritten. The oldest backup falls off the end.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup",
			"path", back3, "error", err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// DefaultTOML renders the default configuration as TOML.
func DefaultTOML() ([]byte, error) {
	defaults := map[string]any{
		"graph": map[string]any{
			"uri":      "bolt://localhost:7687",
			"username": "neo4j",
			"database": "neo4j",
		},
		"log": map[string]any{
			"json":      false,
			"verbosity": 0,
			"theme":     "everforest",
		},
		"ingest": map[string]any{
			"workers":         4,
			"rate_per_second": 0.0,
			"burst":           1,
		},
	}

	data, err := toml.Marshal(defaults)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal default config")
	}
	return data, nil
}

// WriteDefault writes the default configuration to path, backing up any
// existing file first. Own writes are flagged so a running watcher does
// not reload on them.
func WriteDefault(path string) error {
	data, err := DefaultTOML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", path)
	}

	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}

	logger.Infow("Wrote default config", "path", path)
	return nil
}
