// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It recursively watches a search root, drops events for files the search
// would never read, and debounces rapid events (editors often trigger
// multiple writes per save).
package fsnotify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// DefaultDebounce is the minimum gap between two callbacks for one path.
const DefaultDebounce = 50 * time.Millisecond

// Directories to ignore when watching.
var ignoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	".shapegrep":   true,
	".next":        true,
	".mypy_cache":  true,
}

// Editor and OS droppings that never trigger a callback.
var ignoreFiles = map[string]bool{
	".DS_Store": true,
	".swp":      true,
	".swx":      true,
	"~":         true,
	".pyc":      true,
}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	done     chan struct{}
	exited   chan struct{} // closed when loop returns
	started  bool
	stopped  bool
	mu       sync.Mutex
	debounce time.Duration
	accept   func(path string) bool
	log      slogger.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the per-path debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter replaces the default file filter (supported source extensions).
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) {
		if accept != nil {
			w.accept = accept
		}
	}
}

// WithLogger sets where watch errors are reported.
func WithLogger(l slogger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// SourceFilter accepts files whose extension maps to a supported language.
func SourceFilter(path string) bool {
	return ports.IsSupportedExtension(filepath.Ext(path))
}

// NewWatcher creates a new file system watcher.
func NewWatcher(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		debounce: DefaultDebounce,
		accept:   SourceFilter,
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		w.log = slogger.WithComponent("watch")
	}
	return w, nil
}

// Watch starts monitoring root recursively.
// onChange is called with the absolute path of each changed file. Calling
// Watch again adds another root; events still go to the first onChange.
func (w *Watcher) Watch(root string, onChange func(filePath string)) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if shouldIgnoreDir(d.Name()) && path != absPath {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started && !w.stopped {
		w.started = true
		go w.loop(onChange)
	}
	return nil
}

func (w *Watcher) loop(onChange func(string)) {
	defer close(w.exited)
	// Debounce state: last callback time per file
	last := make(map[string]time.Time)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// New directories join the watch list
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !shouldIgnoreDir(info.Name()) {
						if err := w.fw.Add(path); err != nil {
							w.log.Warn(context.Background(), "cannot watch new directory", slogger.Fields2("path", path, "error", err.Error()))
						}
					}
					continue
				}
			}

			if shouldIgnorePath(path) || !w.accept(path) {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}

			now := time.Now()
			if prev, seen := last[path]; seen && now.Sub(prev) < w.debounce {
				continue
			}
			last[path] = now

			select {
			case <-w.done:
				return
			default:
			}
			onChange(path)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// fsnotify recovers by itself (e.g. queue overflow)
			w.log.Warn(context.Background(), "watch error", slogger.Field("error", err.Error()))

		case <-w.done:
			return
		}
	}
}

// Stop ends monitoring and releases all resources. It returns once the
// event loop has exited, so no callback runs after it. Must not be called
// from inside onChange. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	close(w.done)
	err := w.fw.Close()
	w.mu.Unlock()

	if started {
		<-w.exited
	}
	return err
}

// shouldIgnoreDir returns true if the directory name should be skipped.
func shouldIgnoreDir(name string) bool {
	return ignoreDirs[name]
}

// shouldIgnorePath returns true if the file path should not trigger onChange.
func shouldIgnorePath(path string) bool {
	base := filepath.Base(path)
	if ignoreFiles[base] {
		return true
	}
	for suffix := range ignoreFiles {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}
