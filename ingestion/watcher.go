package ingestion

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 2 * time.Second

// Watcher calls a function after files under the sources change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *slog.Logger

	mu      sync.Mutex
	watched map[string]bool
}

// NewWatcher watches every existing source directory, recursively. Bursts
// of changes closer together than debounce trigger onChange once.
func NewWatcher(sources []Source, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		logger:   slog.Default().With("component", "watcher"),
		watched:  make(map[string]bool),
	}

	for _, source := range sources {
		if info, err := os.Stat(source.Dir); err != nil || !info.IsDir() {
			w.logger.Debug("not watching missing source directory", "dir", source.Dir)
			continue
		}
		w.addTree(source.Dir)
	}
	return w, nil
}

// Watched returns the number of directories under watch.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) addTree(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "dir", path, "err", err)
			return nil
		}
		w.watched[path] = true
		return nil
	})
}

// relevant reports whether an event can change the loaded corpus.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if Supported(event.Name) {
		return true
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			return true
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	// A removed or renamed directory changes every file under it.
	return w.watched[event.Name]
}

// Run processes events until ctx is done, then closes the watcher.
// Errors from onChange are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Reset and Stop need no channel draining with Go 1.23 timers.
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("source changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-timer.C:
			w.logger.Info("sources changed, rebuilding")
			if err := w.onChange(ctx); err != nil {
				w.logger.Error("rebuild after change failed", "err", err)
			}
		}
	}
}
