package fsnotify

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// fsnotify Watcher Adapter: detect source changes, trigger a new search
// Expectation: changes to supported source files fire the callback; VCS,
// dependency and editor files never do
// =============================================================================

// startWatching watches dir and returns the channel callbacks are sent to.
func startWatching(t *testing.T, dir string, opts ...Option) (*Watcher, <-chan string) {
	t.Helper()
	w, err := NewWatcher(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	changed := make(chan string, 32)
	require.NoError(t, w.Watch(dir, func(path string) { changed <- path }))
	// fsnotify registration is synchronous, but give the loop a moment.
	time.Sleep(50 * time.Millisecond)
	return w, changed
}

// expectChange waits for a callback naming want, skipping other paths.
func expectChange(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", want)
		}
	}
}

func expectQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected change reported for %s", got)
	case <-time.After(d):
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWatcher_ReportsEdits(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Theme.js")
	write(t, file, "const { colors } = useTheme();")

	_, changed := startWatching(t, dir)
	write(t, file, "const { colors, fonts } = useTheme();")
	expectChange(t, changed, file)
}

func TestWatcher_ReportsCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	_, changed := startWatching(t, dir)

	file := filepath.Join(dir, "util.py")
	write(t, file, "def f(): pass")
	expectChange(t, changed, file)

	// Outlast the debounce window so the removal is not swallowed.
	time.Sleep(2 * DefaultDebounce)
	require.NoError(t, os.Remove(file))
	expectChange(t, changed, file)
}

func TestWatcher_IgnoresNonSourceFiles(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{".git", "node_modules", ".shapegrep"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0755))
	}
	_, changed := startWatching(t, dir)

	write(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	write(t, filepath.Join(dir, "node_modules", "index.js"), "x()")
	write(t, filepath.Join(dir, ".shapegrep", "cache.js"), "x()")
	write(t, filepath.Join(dir, ".DS_Store"), "x")
	write(t, filepath.Join(dir, "App.js.swp"), "x")
	write(t, filepath.Join(dir, "README.md"), "# docs")
	write(t, filepath.Join(dir, "main.go"), "package main")
	expectQuiet(t, changed, 400*time.Millisecond)

	file := filepath.Join(dir, "App.tsx")
	write(t, file, "export const App = () => <div />;")
	expectChange(t, changed, file)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "burst.js")
	write(t, file, "a()")

	_, changed := startWatching(t, dir, WithDebounce(time.Second))
	for i := 0; i < 5; i++ {
		write(t, file, "a(); b();")
	}
	expectChange(t, changed, file)
	expectQuiet(t, changed, 300*time.Millisecond)
}

func TestWatcher_StopEndsCallbacks(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	var calls atomic.Int32
	require.NoError(t, w.Watch(dir, func(string) { calls.Add(1) }))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())
	before := calls.Load()

	write(t, filepath.Join(dir, "after_stop.py"), "# nope")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, calls.Load(), "callbacks fired after Stop()")

	// Double-stop is safe.
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopWithoutWatch(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}

func TestWatcher_CustomFilter(t *testing.T) {
	dir := t.TempDir()
	_, changed := startWatching(t, dir, WithFilter(func(path string) bool {
		return filepath.Ext(path) == ".md"
	}))

	write(t, filepath.Join(dir, "main.py"), "# code")
	expectQuiet(t, changed, 300*time.Millisecond)

	doc := filepath.Join(dir, "notes.md")
	write(t, doc, "# notes")
	expectChange(t, changed, doc)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	_, changed := startWatching(t, dir)

	sub := filepath.Join(dir, "components")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "Button.tsx")
	write(t, file, "export {}")
	expectChange(t, changed, file)
}

func TestShouldIgnorePath(t *testing.T) {
	assert.True(t, shouldIgnorePath(filepath.Join("a", "node_modules", "x.js")))
	assert.True(t, shouldIgnorePath(filepath.Join("a", ".shapegrep", "store.db")))
	assert.True(t, shouldIgnorePath("main.js~"))
	assert.False(t, shouldIgnorePath(filepath.Join("src", "main.js")))
	assert.True(t, SourceFilter("a/b.tsx"))
	assert.False(t, SourceFilter("a/b.go"))
}
