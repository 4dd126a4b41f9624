package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"atsmatch/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher watches the suggestion catalog file and calls onChange
// after writes settle
type CatalogWatcher struct {
	mu sync.Mutex

	file     string
	lastStat fileStamp

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onChange func()
	logger   *errors.Logger

	running bool
}

type fileStamp struct {
	modTime time.Time
	size    int64
	exists  bool
}

// NewCatalogWatcher creates a watcher for file. A zero debounceDelay means one second.
func NewCatalogWatcher(file string, debounceDelay time.Duration, onChange func(), logger *errors.Logger) *CatalogWatcher {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}

	return &CatalogWatcher{
		file:          filepath.Clean(file),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching. The parent directory is watched as well so that
// editors replacing the file by rename are picked up.
func (cw *CatalogWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("catalog watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(cw.file)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	cw.fsWatcher = watcher
	cw.lastStat = stampFile(cw.file)
	cw.running = true
	go cw.watchLoop()

	if cw.logger != nil {
		cw.logger.Info("Suggestion catalog watcher started",
			"file", cw.file,
			"debounce_delay", cw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (cw *CatalogWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return nil
	}

	close(cw.stopChan)
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.running = false

	if err := cw.fsWatcher.Close(); err != nil {
		if cw.logger != nil {
			cw.logger.LogError(err, "Failed to close file system watcher")
		}
		return err
	}

	if cw.logger != nil {
		cw.logger.Info("Suggestion catalog watcher stopped")
	}
	return nil
}

// IsRunning returns whether the watcher is currently running
func (cw *CatalogWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

func (cw *CatalogWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.fsWatcher.Events:
			if !ok {
				return
			}
			if cw.shouldProcessEvent(event) {
				cw.scheduleReload()
			}

		case err, ok := <-cw.fsWatcher.Errors:
			if !ok {
				return
			}
			if cw.logger != nil {
				cw.logger.LogError(err, "File watcher error")
			}

		case <-cw.reloadChan:
			if cw.hasChanged() {
				if cw.logger != nil {
					cw.logger.Info("Suggestion catalog changed, reloading", "file", cw.file)
				}
				cw.onChange()
			}

		case <-cw.stopChan:
			return
		}
	}
}

// shouldProcessEvent accepts write, create and rename events for the catalog file
func (cw *CatalogWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != cw.file {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// hasChanged compares the file against the last seen modification time and size
func (cw *CatalogWatcher) hasChanged() bool {
	current := stampFile(cw.file)
	if current.same(cw.lastStat) {
		return false
	}
	cw.lastStat = current
	// a removed file keeps the last good catalog
	return current.exists
}

// scheduleReload restarts the debounce timer
func (cw *CatalogWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	cw.debounceTimer = time.AfterFunc(cw.debounceDelay, func() {
		select {
		case cw.reloadChan <- struct{}{}:
		default:
		}
	})
}

func (f fileStamp) same(other fileStamp) bool {
	return f.exists == other.exists && f.size == other.size && f.modTime.Equal(other.modTime)
}

func stampFile(path string) fileStamp {
	stat, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: stat.ModTime(), size: stat.Size(), exists: true}
}
