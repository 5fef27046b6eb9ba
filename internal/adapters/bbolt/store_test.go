package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/shapegrep/internal/ports"
)

// =============================================================================
// bbolt Storage Adapter: report cache and search history
// Expectation: all data project-scoped, msgpack values, survives restarts,
// history newest first and bounded
// =============================================================================

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

// makeTestReport creates a realistic report.
func makeTestReport() *ports.SearchReport {
	return &ports.SearchReport{
		ID:   "0d4f1c2e-5a55-4d0a-9c43-1e0f5b8f7a10",
		Mode: ports.ModeText,
		Matches: []ports.MatchResult{
			{
				QueryIndex: 0,
				Path:       "src/ThemeToggle.js",
				Span:       ports.Span{StartByte: 70, EndByte: 98, StartLine: 4, StartCol: 3, EndLine: 4, EndCol: 31},
				Text:       "const { colors } = useTheme(",
			},
			{
				QueryIndex: 1,
				Path:       "src/hooks.js",
				Span:       ports.Span{StartByte: 40, EndByte: 50, StartLine: 2, StartCol: 3, EndLine: 2, EndCol: 13},
				Text:       "useState()",
				Fallback:   true,
			},
		},
		Errors: []ports.SearchError{
			{Path: "src/bad.js", Kind: ports.ErrorKindParse, Message: "javascript parse error at 1:17: unexpected \"{\""},
		},
		QueryErrors:  []ports.QueryError{{QueryIndex: 2, Query: "a + $$$", Message: "invalid"}},
		FilesScanned: 3,
		FilesMatched: 2,
		FilesSkipped: 1,
		Elapsed:      42 * time.Millisecond,
	}
}

func makeEntry(id string, at time.Time) ports.HistoryEntry {
	return ports.HistoryEntry{
		ID:           id,
		At:           at,
		Queries:      []string{"const $$ = use$$("},
		Mode:         ports.ModeText,
		Roots:        []string{"src"},
		Matches:      7,
		FilesScanned: 3,
		Elapsed:      12 * time.Millisecond,
	}
}

func TestStore_SaveLoadReport_Roundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	orig := makeTestReport()
	orig.Cached = true

	require.NoError(t, store.SaveReport("proj-1", "k1", orig))
	got, err := store.LoadReport("proj-1", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Mode, got.Mode)
	assert.Equal(t, orig.Matches, got.Matches)
	assert.Equal(t, orig.Errors, got.Errors)
	assert.Equal(t, orig.QueryErrors, got.QueryErrors)
	assert.Equal(t, orig.FilesScanned, got.FilesScanned)
	assert.Equal(t, orig.FilesMatched, got.FilesMatched)
	assert.Equal(t, orig.FilesSkipped, got.FilesSkipped)
	assert.Equal(t, orig.Elapsed, got.Elapsed)
	assert.False(t, got.Cached, "Cached is a runtime flag and is not persisted")
}

func TestStore_LoadReport_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.LoadReport("proj-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SaveReport("proj-1", "k1", makeTestReport()))
	got, err = store.LoadReport("proj-1", "k2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveReport_Nil(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.SaveReport("proj-1", "k", nil))
}

func TestStore_History_NewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendHistory("proj-1", makeEntry(fmt.Sprintf("id-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := store.ListHistory("proj-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "id-4", all[0].ID)
	assert.Equal(t, "id-0", all[4].ID)
	assert.True(t, base.Add(4*time.Minute).Equal(all[0].At))
	assert.Equal(t, []string{"const $$ = use$$("}, all[0].Queries)
	assert.Equal(t, 7, all[0].Matches)

	two, err := store.ListHistory("proj-1", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "id-3", two[1].ID)
}

func TestStore_History_SameInstant(t *testing.T) {
	store, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendHistory("proj-1", makeEntry("a", at)))
	require.NoError(t, store.AppendHistory("proj-1", makeEntry("b", at)))

	all, err := store.ListHistory("proj-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_History_Pruned(t *testing.T) {
	store, _ := newTestStore(t)
	store.SetHistoryLimit(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendHistory("proj-1", makeEntry(fmt.Sprintf("id-%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	all, err := store.ListHistory("proj-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "id-5", all[0].ID)
	assert.Equal(t, "id-3", all[2].ID)
}

func TestStore_CrashRecovery(t *testing.T) {
	// Write data, close, reopen. Data from the last committed transaction is
	// intact; bbolt fsyncs on commit.
	dir := t.TempDir()
	path := filepath.Join(dir, "crash.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveReport("proj-1", "k1", makeTestReport()))
	require.NoError(t, store.Close())

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	loaded, err := store2.LoadReport("proj-1", "k1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Matches, 2)
}

func TestStore_ProjectScoped(t *testing.T) {
	// Two projects stored in the same file use separate buckets.
	store, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReport("proj-A", "k", makeTestReport()))
	require.NoError(t, store.AppendHistory("proj-A", makeEntry("a1", at)))
	require.NoError(t, store.AppendHistory("proj-B", makeEntry("b1", at)))

	got, err := store.LoadReport("proj-B", "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	histB, err := store.ListHistory("proj-B", 0)
	require.NoError(t, err)
	require.Len(t, histB, 1)
	assert.Equal(t, "b1", histB[0].ID)

	histC, err := store.ListHistory("proj-C", 0)
	require.NoError(t, err)
	assert.Empty(t, histC)
}

func TestStore_DeleteProject(t *testing.T) {
	store, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReport("proj-A", "k", makeTestReport()))
	require.NoError(t, store.AppendHistory("proj-A", makeEntry("a1", at)))
	require.NoError(t, store.SaveReport("proj-B", "k", makeTestReport()))

	require.NoError(t, store.DeleteProject("proj-A"))

	got, err := store.LoadReport("proj-A", "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	hist, err := store.ListHistory("proj-A", 0)
	require.NoError(t, err)
	assert.Empty(t, hist)

	gotB, err := store.LoadReport("proj-B", "k")
	require.NoError(t, err)
	assert.NotNil(t, gotB)

	// Delete nonexistent: idempotent
	assert.NoError(t, store.DeleteProject("proj-C"))
}

func TestStore_ConcurrentReads(t *testing.T) {
	// bbolt supports concurrent readers, single writer.
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveReport("proj-1", "k", makeTestReport()))

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := store.LoadReport("proj-1", "k")
			if err != nil {
				errs <- err
				return
			}
			if r == nil {
				errs <- fmt.Errorf("got nil report")
				return
			}
			if len(r.Matches) != 2 {
				errs <- fmt.Errorf("expected 2 matches, got %d", len(r.Matches))
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func TestStore_StateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restart.db")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.AppendHistory("proj-1", makeEntry("first", at)))
	require.NoError(t, store1.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	hist, err := store2.ListHistory("proj-1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "first", hist[0].ID)
	assert.Equal(t, 12*time.Millisecond, hist[0].Elapsed)
}

// =============================================================================
// Lock contention tests: verify the 1s timeout prevents hangs
// =============================================================================

func TestStore_OpenTimeout_DoesNotHang(t *testing.T) {
	// When another process/goroutine holds the bbolt exclusive lock,
	// a second open should timeout in ~1 second, not hang forever.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	// First store holds the exclusive lock.
	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	// Second open should timeout, not hang.
	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, store2, "store should be nil on timeout")
	assert.Contains(t, err.Error(), "timeout", "error should mention timeout")
	assert.Less(t, elapsed, 3*time.Second, "should complete within 3s, not hang")
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "should wait ~1s for the configured timeout")
}

func TestStore_OpenTimeout_ErrorMessage(t *testing.T) {
	// The error message should be useful for diagnosis: wrapped with context.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	_, err = NewStore(path)
	require.Error(t, err)
	// Should include our "bbolt open:" wrapper
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Contains(t, err.Error(), "timeout")
}

func TestStore_OpenAfterClose_Succeeds(t *testing.T) {
	// After the lock holder closes, a new open should succeed immediately.
	dir := t.TempDir()
	path := filepath.Join(dir, "released.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	// Write some data so the file isn't empty.
	require.NoError(t, store1.SaveReport("test", "k", makeTestReport()))
	store1.Close()

	// Second open should succeed immediately (no timeout wait).
	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.NoError(t, err, "open after close should succeed")
	require.NotNil(t, store2)
	assert.Less(t, elapsed, 500*time.Millisecond, "should open instantly after lock released")
	defer store2.Close()

	// Verify data is accessible.
	r, err := store2.LoadReport("test", "k")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Len(t, r.Matches, 2)
}

func TestStore_OpenTimeout_ConcurrentAttempts(t *testing.T) {
	// Multiple goroutines trying to open a locked DB should all fail fast.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	const n = 3
	errs := make(chan error, n)
	durations := make(chan time.Duration, n)

	for i := 0; i < n; i++ {
		go func() {
			start := time.Now()
			s, err := NewStore(path)
			durations <- time.Since(start)
			if s != nil {
				s.Close()
			}
			errs <- err
		}()
	}

	for i := 0; i < n; i++ {
		err := <-errs
		d := <-durations
		assert.Error(t, err, "concurrent open %d should fail", i)
		assert.Contains(t, err.Error(), "timeout")
		assert.Less(t, d, 3*time.Second, "concurrent open %d should not hang", i)
	}
}
