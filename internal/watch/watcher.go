// Package watch reports changes to Mercurial repository metadata.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sergeknystautas/rbclient/internal/logging"
)

// ignoredNames are files hg creates and removes around every write; they
// never mean the history changed.
var ignoredNames = map[string]bool{
	"lock":  true,
	"wlock": true,
}

// Watcher watches the .hg directories of one or more repositories and calls
// onChange once per repository after a quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *logging.Logger
	onChange func(root string)

	// watchedPaths maps watched directories to repository roots.
	watchedPaths   map[string][]string
	watchedPathsMu sync.Mutex

	// debounceTimers holds per-repository debounce timers.
	debounceTimers   map[string]*time.Timer
	debounceTimersMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a watcher. onChange runs on its own goroutine.
func New(debounce time.Duration, onChange func(root string), logger *logging.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		watcher:        w,
		debounce:       debounce,
		log:            logger.Component("watch"),
		onChange:       onChange,
		watchedPaths:   make(map[string][]string),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start launches the event loop goroutine.
func (w *Watcher) Start() {
	go w.eventLoop()
	w.log.Debugf("started")
}

// Stop closes the watcher and cancels all pending timers.
// Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()

		w.debounceTimersMu.Lock()
		for _, t := range w.debounceTimers {
			t.Stop()
		}
		w.debounceTimersMu.Unlock()

		w.log.Debugf("stopped")
	})
}

// AddRepository watches the metadata of the repository at root.
func (w *Watcher) AddRepository(root string) error {
	hgDir := filepath.Join(root, ".hg")
	info, err := os.Stat(hgDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("no .hg directory in %s", root)
	}

	// .hg itself catches dirstate, bookmarks and branch changes; the store
	// catches new changesets.
	w.addWatch(hgDir, root)
	w.watchRecursive(filepath.Join(hgDir, "store"), root)

	w.log.Debugf("watching %s", root)
	return nil
}

func (w *Watcher) eventLoop() {
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
			w.log.Warnf("watch error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if ignoredNames[filepath.Base(event.Name)] {
		return
	}

	// New directories under the store (e.g. data/ subdirectories) need
	// their own watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchedPathsMu.Lock()
			roots := w.watchedPaths[filepath.Dir(event.Name)]
			w.watchedPathsMu.Unlock()

			for _, root := range roots {
				w.addWatch(event.Name, root)
			}
		}
	}

	for _, root := range w.findRoots(event.Name) {
		w.resetDebounce(root)
	}
}

// findRoots returns the repositories watching path or one of its parents.
func (w *Watcher) findRoots(path string) []string {
	w.watchedPathsMu.Lock()
	defer w.watchedPathsMu.Unlock()

	if roots, ok := w.watchedPaths[path]; ok {
		return roots
	}
	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if roots, ok := w.watchedPaths[dir]; ok {
			return roots
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (w *Watcher) resetDebounce(root string) {
	w.debounceTimersMu.Lock()
	defer w.debounceTimersMu.Unlock()

	if t, ok := w.debounceTimers[root]; ok {
		t.Reset(w.debounce)
		return
	}
	w.debounceTimers[root] = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.log.Debugf("%s changed", root)
		w.onChange(root)
	})
}

func (w *Watcher) addWatch(path, root string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	w.watchedPathsMu.Lock()
	roots := w.watchedPaths[path]
	if !containsString(roots, root) {
		w.watchedPaths[path] = append(roots, root)
	}
	needsAdd := len(roots) == 0
	w.watchedPathsMu.Unlock()

	if needsAdd {
		if err := w.watcher.Add(path); err != nil {
			w.log.Warnf("failed to watch %s: %v", path, err)
		}
	}
}

func (w *Watcher) watchRecursive(dir, root string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			w.addWatch(path, root)
		}
		return nil
	})
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
