package pipes

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"geese/internal/logging"
)

// DefaultWatchDebounce is how long a module file must be quiet before the
// watcher reloads it.
const DefaultWatchDebounce = 300 * time.Millisecond

// WatchDir is a scope directory and the source its modules register under.
type WatchDir struct {
	Path   string
	Source Source
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Reloaded      int
	Unloaded      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher reloads custom operations when their module files change.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	registry    *Registry
	dirs        map[string]Source
	files       map[string]func(path string)
	pending     map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stopped     bool
	stats       WatcherStats
}

// NewWatcher creates a watcher for the given scope directories.
func NewWatcher(reg *Registry, dirs ...WatchDir) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		registry:    reg,
		dirs:        make(map[string]Source),
		files:       make(map[string]func(path string)),
		pending:     make(map[string]time.Time),
		debounceDur: DefaultWatchDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(d.Path)
		if err != nil {
			abs = filepath.Clean(d.Path)
		}
		w.dirs[abs] = d.Source
	}
	return w, nil
}

// SetDebounce changes the debounce window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	w.debounceDur = d
	w.mu.Unlock()
}

// OnFileChange calls fn once the file at path has been created, written or
// removed and then stayed quiet for the debounce window. Its directory is
// watched too. Call before Start.
func (w *Watcher) OnFileChange(path string, fn func(path string)) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	w.mu.Lock()
	w.files[abs] = fn
	w.mu.Unlock()
}

// Start begins watching. It is non-blocking; events are handled in a
// goroutine until ctx is cancelled or Stop is called. A stopped watcher
// cannot be restarted.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWatcherStopped
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	watch := make(map[string]struct{}, len(w.dirs)+len(w.files))
	for dir := range w.dirs {
		watch[dir] = struct{}{}
	}
	for path := range w.files {
		watch[filepath.Dir(path)] = struct{}{}
	}
	for dir := range watch {
		if err := w.watcher.Add(dir); err != nil {
			// Missing scopes are normal; nothing to reload there.
			logging.Get(logging.CategoryWatcher).Warn("Watcher: cannot watch %s: %v", dir, err)
			continue
		}
		logging.Watcher("Watcher: watching directory: %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher, waits for its goroutine to exit and releases
// the underlying fsnotify watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		logging.WatcherError("Watcher: error closing watcher: %v", err)
	}
	stats := w.Stats()
	logging.Get(logging.CategoryWatcher).StructuredLog("info", "Watcher: stopped", map[string]interface{}{
		"reloaded": stats.Reloaded,
		"unloaded": stats.Unloaded,
		"errors":   stats.Errors,
	})
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatcherError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-tick.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.RLock()
	_, hooked := w.files[event.Name]
	w.mu.RUnlock()
	if !hooked && !isModuleFile(filepath.Base(event.Name)) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logging.WatcherDebug("Watcher: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.reload(path)
	}
}

// reload re-registers the module at path, or unregisters its operations
// when the file is gone. A module that no longer parses keeps its
// previous definition.
func (w *Watcher) reload(path string) {
	w.mu.RLock()
	fn, hooked := w.files[path]
	w.mu.RUnlock()
	if hooked {
		logging.WatcherDebug("Watcher: %s changed", path)
		fn(path)
		return
	}

	source, ok := w.dirs[filepath.Dir(path)]
	if !ok {
		return
	}
	loader := w.registry.Loader()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		removed := loader.Unload(path)
		logging.Watcher("Watcher: %s removed; unregistered %v", path, removed)
		w.mu.Lock()
		w.stats.Unloaded++
		w.mu.Unlock()
		return
	}

	mod, err := ParseModule(path, loader.Config().BlockedImports)
	if err != nil {
		logging.WatcherError("Watcher: reload of %s failed: %v", path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	// A renamed Name export leaves the old operation behind otherwise.
	for _, name := range loader.Unload(path) {
		if name != mod.Name {
			logging.WatcherDebug("Watcher: %s no longer exports %s", path, name)
		}
	}
	if err := loader.register(mod, source); err != nil {
		logging.WatcherError("Watcher: register %s failed: %v", mod.Name, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	logging.Watcher("Watcher: reloaded %s from %s", mod.Name, path)
	w.mu.Lock()
	w.stats.Reloaded++
	w.mu.Unlock()
}
