package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/logger"
)

// Watcher reloads configuration when the watched file changes. Long batch
// runs register callbacks on it to pick up rate-limit edits mid-run.
//
// Editors and WriteDefault can fire several filesystem events for one
// logical save, so reloads are debounced. Writes issued by lore itself are
// flagged through MarkOwnWrite and skipped.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	debouncePeriod time.Duration

	mu            sync.RWMutex
	callbacks     []ReloadCallback
	debounceTimer *time.Timer

	isOwnWriteMutex sync.Mutex
	isOwnWrite      bool
}

// ReloadCallback receives the freshly loaded config after a change.
type ReloadCallback func(*Config) error

var (
	globalWatcher   *Watcher
	globalWatcherMu sync.Mutex
)

// NewWatcher builds a watcher for one config file. Call Start to begin
// receiving events and Stop to release the underlying notifier.
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(configPath); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fsw,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback for future reloads.
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite flags the next write as lore's own so it does not loop
// back into a reload.
func (w *Watcher) MarkOwnWrite() {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()
	w.isOwnWrite = true
}

// checkOwnWrite consumes the own-write flag.
func (w *Watcher) checkOwnWrite() bool {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()

	was := w.isOwnWrite
	w.isOwnWrite = false
	return was
}

// Start watches in the background until Stop.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}
	if isBackupFile(event.Name) {
		return
	}
	if w.checkOwnWrite() {
		logger.Debugw("Config watcher ignoring own write", "file", event.Name)
		return
	}

	logger.Infow("Config watcher detected change",
		"file", event.Name,
		"op", event.Op.String())
	w.scheduleReload()
}

// scheduleReload coalesces a burst of events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("Config reload failed", "error", err)
		}
	})
}

// reload reloads the cascade and notifies every callback. A failing
// callback is logged and does not stop the rest.
func (w *Watcher) reload() error {
	Reset()

	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	logger.Infow("Config reloaded", "path", w.configPath)

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			logger.Warnw("Config reload callback error", "error", err)
		}
	}
	return nil
}

// Stop releases the notifier. The watch loop drains and exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// isBackupFile matches the rotating backups WriteDefault leaves behind.
func isBackupFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".back1") ||
		strings.HasSuffix(base, ".back2") ||
		strings.HasSuffix(base, ".back3")
}

// SetGlobalWatcher installs the process-wide watcher WriteDefault consults
// before touching the config file.
func SetGlobalWatcher(watcher *Watcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = watcher
}

// GetGlobalWatcher returns the process-wide watcher, or nil.
func GetGlobalWatcher() *Watcher {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	return globalWatcher
}
