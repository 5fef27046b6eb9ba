package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/shapegrep/internal/adapters/treesitter"
	"github.com/corey/shapegrep/internal/config"
	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// fakeWatcher lets tests fire change events by hand.
type fakeWatcher struct {
	mu       sync.Mutex
	onChange func(string)
	watching chan struct{}
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{watching: make(chan struct{})}
}

func (w *fakeWatcher) Watch(root string, onChange func(string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = onChange
	close(w.watching)
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = nil
	return nil
}

func (w *fakeWatcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.onChange != nil {
		w.onChange(path)
	}
}

func testSettings(t *testing.T, dir string) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("store.path", filepath.Join(dir, ".shapegrep", "test.db"))
	s, err := config.New(v)
	require.NoError(t, err)
	return s
}

func newTestApp(t *testing.T, dir string, mutate func(*Config)) *App {
	t.Helper()
	cfg := Config{
		ProjectRoot:   dir,
		Settings:      testSettings(t, dir),
		ParserFactory: treesitter.Factory(),
		Logger:        slogger.Discard(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

const hookSource = `const { colors } = useTheme();
const [open, setOpen] = useState(false);
let x = 1;
`

func TestApp_TextSearchRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/Theme.js": hookSource})
	a := newTestApp(t, dir, nil)

	report, err := a.Search(context.Background(), SearchParams{
		Queries: []string{"const $$ = use$$("},
		Mode:    ports.ModeText,
	})
	require.NoError(t, err)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, "const { colors } = useTheme(", report.Matches[0].Text)
	assert.False(t, report.Cached)

	history, err := a.History(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Matches)
	assert.Equal(t, ports.ModeText, history[0].Mode)
}

func TestApp_StructuralSearch(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/Theme.js": hookSource})
	a := newTestApp(t, dir, nil)

	report, err := a.Search(context.Background(), SearchParams{
		Queries: []string{"useState(false)"},
	})
	require.NoError(t, err)
	assert.Equal(t, ports.ModeExact, report.Mode)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "useState(false)", report.Matches[0].Text)
	assert.Equal(t, 2, report.Matches[0].Span.StartLine)
}

func TestApp_ReportCache(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/Theme.js": hookSource})
	a := newTestApp(t, dir, nil)
	params := SearchParams{Queries: []string{"const $$ = use$$("}, Mode: ports.ModeText}

	first, err := a.Search(context.Background(), params)
	require.NoError(t, err)
	second, err := a.Search(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Matches, second.Matches)

	// Changing a file invalidates the cached report.
	writeTree(t, dir, map[string]string{"src/Theme.js": hookSource + "const y = useMemo(f);\n"})
	third, err := a.Search(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Matches, 3)

	// NoCache bypasses the cache entirely.
	fourth, err := a.Search(context.Background(), SearchParams{Queries: params.Queries, Mode: params.Mode, NoCache: true})
	require.NoError(t, err)
	assert.False(t, fourth.Cached)

	history, err := a.History(0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.False(t, history[0].Cached)
	assert.True(t, history[2].Cached)
}

func TestApp_StoreFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.js": hookSource, "blocker": "x"})

	settings := testSettings(t, dir)
	settings.Store.Path = filepath.Join(dir, "blocker", "store.db")
	a := newTestApp(t, dir, func(c *Config) { c.Settings = settings })
	assert.Nil(t, a.Store)

	report, err := a.Search(context.Background(), SearchParams{Queries: []string{"useTheme()"}})
	require.NoError(t, err)
	assert.Len(t, report.Matches, 1)

	_, err = a.History(1)
	assert.Error(t, err)
}

func TestApp_TextOnlyWithoutParser(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.js": hookSource})
	a := newTestApp(t, dir, func(c *Config) { c.ParserFactory = nil })

	_, err := a.Search(context.Background(), SearchParams{Queries: []string{"useTheme()"}})
	assert.Error(t, err)

	report, err := a.Search(context.Background(), SearchParams{Queries: []string{"useTheme()"}, Mode: ports.ModeText})
	require.NoError(t, err)
	assert.Len(t, report.Matches, 1)
}

func TestApp_ClearHistory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.js": hookSource})
	a := newTestApp(t, dir, nil)

	_, err := a.Search(context.Background(), SearchParams{Queries: []string{"useTheme()"}})
	require.NoError(t, err)
	require.NoError(t, a.ClearHistory())

	history, err := a.History(0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApp_WatchReSearchesOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	writeTree(t, dir, map[string]string{"a.js": hookSource})

	fw := newFakeWatcher()
	a := newTestApp(t, dir, func(c *Config) {
		c.NewWatcher = func() (ports.Watcher, error) { return fw, nil }
	})

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan *ports.SearchReport, 16)
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, SearchParams{Queries: []string{"const $$ = use$$("}, Mode: ports.ModeText},
			func(r *ports.SearchReport) { reports <- r })
	}()

	waitFor := func(want int) {
		t.Helper()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case r := <-reports:
				if len(r.Matches) == want {
					assert.False(t, r.Cached)
					return
				}
			case <-deadline:
				t.Fatalf("no report with %d matches", want)
			}
		}
	}

	waitFor(2)
	<-fw.watching

	require.NoError(t, os.WriteFile(file, []byte(hookSource+"const y = useMemo(f);\n"), 0644))
	fw.fire(file)
	waitFor(3)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
