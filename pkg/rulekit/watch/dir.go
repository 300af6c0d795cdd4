package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
)

// DefaultDebounce is the quiet period before a DirWatcher reloads.
const DefaultDebounce = 100 * time.Millisecond

// ErrRunning indicates Run was called on a watcher that is already running.
var ErrRunning = errors.New("watcher already running")

// DirWatcher reloads rules when rule files in a directory are created,
// written, renamed or removed. Subdirectories are not watched.
type DirWatcher struct {
	dir     string
	fn      ReloadFunc
	opts    options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
}

// NewDirWatcher creates a watcher for dir. Call Run to start it.
func NewDirWatcher(dir string, fn ReloadFunc, opts ...Option) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &DirWatcher{
		dir:     dir,
		fn:      fn,
		opts:    buildOptions(dir, opts),
		watcher: watcher,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
// A DirWatcher runs once; a second call returns ErrRunning.
// Reload failures are logged and recorded; the watcher keeps running.
func (w *DirWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()

	defer w.watcher.Close()

	logger := w.opts.logger
	if logger != nil {
		logger.Info("rule watcher started",
			"dir", w.dir,
			"debounce_ms", w.opts.debounce.Milliseconds(),
		)
	}

	// The timer only runs while changes are pending.
	timer := time.NewTimer(w.opts.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Info("rule watcher stopped", "dir", w.dir)
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !shouldReload(event) {
				continue
			}
			if logger != nil {
				logger.Debug("rule file changed", "path", event.Name, "op", event.Op.String())
			}
			timer.Reset(w.opts.debounce)

		case <-timer.C:
			// Failures are logged and counted by reload; the old rules stay live.
			_ = w.opts.reload(ctx, w.fn)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			if logger != nil {
				logger.Error("rule watcher error", "error", err)
			}
		}
	}
}

// Reload runs the reload function once, outside the event loop.
func (w *DirWatcher) Reload(ctx context.Context) error {
	return w.opts.reload(ctx, w.fn)
}

// shouldReload reports whether event can change the rule set.
func shouldReload(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return ruleset.IsRuleFile(base)
}
