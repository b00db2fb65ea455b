// Package watch re-runs a callback when input files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"ftprep/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before the callback runs.
const DefaultDebounce = 500 * time.Millisecond

// OnChange is called from the watcher goroutine with the files that settled
// since the last call, sorted.
type OnChange func(ctx context.Context, paths []string) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Triggered     int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches a fixed set of files. It watches their directories so that
// editors that replace a file on save are still seen.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	files       map[string]bool
	dirs        []string
	onChange    OnChange
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher for files. Empty paths are ignored.
func New(files []string, onChange OnChange) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:     fw,
		files:       make(map[string]bool),
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: DefaultDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	seenDir := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = true
		if dir := filepath.Dir(abs); !seenDir[dir] {
			seenDir[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// SetDebounce changes the quiet period. Call it before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounceDur = d
	w.mu.Unlock()
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logging.Watch("watching directory: %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchWarn("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Done is closed when the watcher goroutine exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// GetStats returns a copy of the activity counters.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 5
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
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
			logging.WatchWarn("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)
	if !w.files[path] {
		return
	}
	logging.WatchDebug("%s event for %s", event.Op, path)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventPath = path
	w.stats.LastEventTime = time.Now()
	w.debounceMap[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)
	logging.Watch("change settled: %v", settled)
	err := w.onChange(ctx, settled)
	w.mu.Lock()
	w.stats.Triggered++
	if err != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()
	if err != nil {
		logging.WatchWarn("callback for %v failed: %v", settled, err)
	}
}
