package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// Watch runs params once, then again each time a watched file changes, until
// ctx is done. A change arriving mid-search cancels that search; onReport
// only sees reports of searches that ran to completion, one call at a time.
func (a *App) Watch(ctx context.Context, params SearchParams, onReport func(*ports.SearchReport)) error {
	params.NoCache = true
	roots := params.Roots
	if len(roots) == 0 {
		roots = []string{a.ProjectRoot}
	}

	var (
		sup    Supersede
		wg     sync.WaitGroup
		mu     sync.Mutex // guards runErr
		runErr error
	)
	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var report *ports.SearchReport
			err := sup.Run(ctx, func(runCtx context.Context) error {
				r, err := a.Search(runCtx, params)
				report = r
				return err
			}, func() { onReport(report) })
			switch {
			case err == nil, errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
			default:
				a.log.Warn(ctx, "watch search failed", slogger.Field("error", err.Error()))
				mu.Lock()
				if runErr == nil {
					runErr = err
				}
				mu.Unlock()
			}
		}()
	}

	var watchers []ports.Watcher
	defer func() {
		for _, w := range watchers {
			_ = w.Stop()
		}
		sup.Stop()
		wg.Wait()
	}()
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			continue
		}
		w, err := a.newWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		watchers = append(watchers, w)
		if err := w.Watch(root, func(path string) {
			a.log.Debug(ctx, "change", slogger.Field("path", path))
			trigger()
		}); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	trigger()
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return runErr
}
