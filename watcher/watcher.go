// Package watcher reloads the reference set when files in the reference
// directory change.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/source"
)

// ReloadFunc rebuilds the reference snapshot
type ReloadFunc func(ctx context.Context) error

// DefaultDebounce groups the burst of events an editor save produces
const DefaultDebounce = 500 * time.Millisecond

// ReferenceWatcher watches one reference directory and calls reload after
// changes settle
type ReferenceWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	reload   ReloadFunc
	debounce time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
	stopped       bool

	ctx     context.Context
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	running sync.WaitGroup
}

// New creates a watcher for dir. A debounce of zero uses DefaultDebounce.
func New(dir string, debounce time.Duration, reload ReloadFunc) (*ReferenceWatcher, error) {
	if reload == nil {
		return nil, errors.New("watcher needs a reload function")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	// Watch the directory, not the files, so renames and new files are seen
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "failed to watch reference directory %s", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ReferenceWatcher{
		dir:      dir,
		watcher:  w,
		reload:   reload,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching for changes
func (rw *ReferenceWatcher) Start() {
	rw.loop.Add(1)
	go rw.watchLoop()
}

// Stop stops watching and waits for a running reload to finish
func (rw *ReferenceWatcher) Stop() error {
	rw.mu.Lock()
	if rw.stopped {
		rw.mu.Unlock()
		return nil
	}
	rw.stopped = true
	if rw.debounceTimer != nil {
		rw.debounceTimer.Stop()
	}
	rw.mu.Unlock()

	rw.cancel()
	err := rw.watcher.Close()
	rw.loop.Wait()
	rw.running.Wait()
	return err
}

func (rw *ReferenceWatcher) watchLoop() {
	defer rw.loop.Done()
	for {
		select {
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			logging.Debug("Reference watcher detected change",
				"file", event.Name,
				"op", event.Op.String())
			rw.scheduleReload()

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Reference watcher error", "dir", rw.dir, "error", err)
		}
	}
}

// relevant keeps changes to reference documents and drops editor noise
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(base)
	for _, e := range source.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// scheduleReload debounces rapid file changes and triggers reload
func (rw *ReferenceWatcher) scheduleReload() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.stopped {
		return
	}
	if rw.debounceTimer != nil {
		rw.debounceTimer.Stop()
	}
	rw.debounceTimer = time.AfterFunc(rw.debounce, rw.fire)
}

func (rw *ReferenceWatcher) fire() {
	rw.mu.Lock()
	if rw.stopped {
		rw.mu.Unlock()
		return
	}
	rw.running.Add(1)
	rw.mu.Unlock()
	defer rw.running.Done()

	if err := rw.reload(rw.ctx); err != nil {
		logging.Error("Reference reload after change failed", "dir", rw.dir, "error", err)
		return
	}
	logging.Info("Reference reload requested after change", "dir", rw.dir)
}
