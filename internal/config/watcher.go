package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/saga-labs/saga-core/internal/logger"
)

// debounceWindow coalesces the event bursts editors produce on save.
const debounceWindow = 500 * time.Millisecond

// Watcher reloads a config store when its file changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	onReload func(Config)
	stopChan chan struct{}
}

// NewWatcher watches the store's config file directory. onReload, if
// non-nil, runs after each successful reload with the new snapshot.
func NewWatcher(store *Store, onReload func(Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save
	// and a direct file watch goes stale after the rename.
	if err := watcher.Add(filepath.Dir(store.Path())); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		store:    store,
		onReload: onReload,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
	logger.Debug("Started config file watcher on %s", w.store.Path())
}

// Stop ends watching and releases the watcher.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.store.Path() {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		logger.Warn("Config reload failed, keeping previous settings: %v", err)
		return
	}
	logger.Info("Configuration reloaded from %s", w.store.Path())
	if w.onReload != nil {
		w.onReload(w.store.Current())
	}
}
