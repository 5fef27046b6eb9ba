// Package app wires together all adapters and domain logic.
// It provides the lifecycle of a shapegrep session: create, search, watch, close.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"

	"github.com/corey/shapegrep/internal/adapters/ahocorasick"
	"github.com/corey/shapegrep/internal/adapters/bbolt"
	fsw "github.com/corey/shapegrep/internal/adapters/fsnotify"
	"github.com/corey/shapegrep/internal/config"
	"github.com/corey/shapegrep/internal/domain/search"
	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	ProjectID   string
	Settings    *config.Config
	Paths       *Paths

	Engine  *search.Engine
	Store   ports.Storage // nil = no history or cache
	Metrics *Metrics

	log        slogger.Logger
	newWatcher func() (ports.Watcher, error)
	closeStore func() error
	closeOnce  sync.Once
}

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	ProjectID   string         // default: base name of ProjectRoot
	Settings    *config.Config // default: config defaults
	// ParserFactory enables structural modes. nil = text mode only.
	ParserFactory ports.ParserFactory
	Logger        slogger.Logger
	// Store overrides the bbolt store opened from Settings.Store.Path.
	Store ports.Storage
	// Meter receives search metrics. nil = the global meter.
	Meter metric.Meter
	// NewWatcher overrides the fsnotify watcher used by Watch.
	NewWatcher func() (ports.Watcher, error)
}

// New creates an App with all dependencies wired. A store that cannot be
// opened is logged and left out; searches still run.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = filepath.Base(root)
	}
	settings := cfg.Settings
	if settings == nil {
		v := viper.New()
		config.SetDefaults(v)
		if settings, err = config.New(v); err != nil {
			return nil, err
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slogger.WithComponent("app")
	}

	metrics, err := NewMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	a := &App{
		ProjectRoot: root,
		ProjectID:   cfg.ProjectID,
		Settings:    settings,
		Paths:       NewPaths(root, settings.Store.Path),
		Metrics:     metrics,
		log:         log,
		newWatcher:  cfg.NewWatcher,
	}

	s := settings.Search
	a.Engine = search.NewEngine(
		search.WithParserFactory(cfg.ParserFactory),
		search.WithLiteralFilter(ahocorasick.Factory()),
		search.WithWorkers(s.Workers),
		search.WithMaxWorkers(s.MaxWorkers),
		search.WithChunkSize(s.ChunkSize),
		search.WithMaxFileSize(s.MaxFileSize),
		search.WithBudgets(s.AttemptBudget, s.FileBudget),
		search.WithDefaultLanguage(settings.DefaultLanguage()),
		search.WithTextFallback(s.TextFallback),
	)

	switch {
	case cfg.Store != nil:
		a.Store = cfg.Store
	case settings.Store.Cache || settings.Store.History > 0:
		a.openStore()
	}

	if a.newWatcher == nil {
		debounce := settings.Watch.Debounce
		a.newWatcher = func() (ports.Watcher, error) {
			w, err := fsw.NewWatcher(fsw.WithDebounce(debounce))
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}
	return a, nil
}

func (a *App) openStore() {
	if err := a.Paths.EnsureDirs(); err != nil {
		a.log.Warn(context.Background(), "store disabled", slogger.Fields2("path", a.Paths.DB, "error", err.Error()))
		return
	}
	store, err := bbolt.NewStore(a.Paths.DB)
	if err != nil {
		a.log.Warn(context.Background(), "store disabled", slogger.Fields2("path", a.Paths.DB, "error", err.Error()))
		return
	}
	store.SetHistoryLimit(a.Settings.Store.History)
	a.Store = store
	a.closeStore = store.Close
}

// Close releases the store. Safe to call multiple times.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.closeStore != nil {
			err = a.closeStore()
		}
	})
	return err
}

// SearchParams is a search as the command line describes it: queries plus
// the roots to collect files from.
type SearchParams struct {
	Queries         []string
	Roots           []string
	Mode            ports.Mode // empty = configured default
	CaseInsensitive bool
	Debug           bool
	Language        ports.Language
	TextFallback    bool
	Include         []string
	Exclude         []string
	NoCache         bool
}

// Search collects files under params.Roots, runs the search (or answers it
// from the report cache) and records it in the history.
func (a *App) Search(ctx context.Context, params SearchParams) (*ports.SearchReport, error) {
	req, err := a.request(params)
	if err != nil {
		return nil, err
	}

	useCache := a.Store != nil && a.Settings.Store.Cache && !params.NoCache && !params.Debug
	var key string
	if useCache {
		key = cacheKey(req, a.settingsKey())
		cached, err := a.Store.LoadReport(a.ProjectID, key)
		if err != nil {
			a.log.Warn(ctx, "report cache read failed", slogger.Field("error", err.Error()))
		}
		if cached != nil {
			cached.Cached = true
			a.finish(ctx, params, cached)
			return cached, nil
		}
	}

	report, err := a.Engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := a.Store.SaveReport(a.ProjectID, key, report); err != nil {
			a.log.Warn(ctx, "report cache write failed", slogger.Field("error", err.Error()))
		}
	}
	a.finish(ctx, params, report)
	return report, nil
}

func (a *App) request(params SearchParams) (ports.SearchRequest, error) {
	mode := params.Mode
	if mode == "" {
		mode = a.Settings.Mode()
	}
	roots := params.Roots
	if len(roots) == 0 {
		roots = []string{a.ProjectRoot}
	}
	opts := CollectOptions{Include: params.Include, Exclude: params.Exclude}
	if mode.Structural() {
		opts.Language = params.Language
	}
	files, err := CollectFiles(roots, opts)
	if err != nil {
		return ports.SearchRequest{}, fmt.Errorf("collect files: %w", err)
	}
	return ports.SearchRequest{
		Queries:         params.Queries,
		Files:           files,
		Mode:            mode,
		CaseInsensitive: params.CaseInsensitive || a.Settings.Search.CaseInsensitive,
		Debug:           params.Debug,
		Language:        params.Language,
		TextFallback:    params.TextFallback || a.Settings.Search.TextFallback,
	}, nil
}

// settingsKey folds the settings that change results into the cache key.
func (a *App) settingsKey() string {
	s := a.Settings.Search
	return fmt.Sprintf("%d/%d/%d/%s", s.MaxFileSize, s.AttemptBudget, s.FileBudget, s.DefaultLanguage)
}

func (a *App) finish(ctx context.Context, params SearchParams, report *ports.SearchReport) {
	a.Metrics.Record(ctx, report)
	if a.Store == nil || a.Settings.Store.History <= 0 {
		return
	}
	entry := ports.HistoryEntry{
		ID:           report.ID,
		At:           time.Now(),
		Queries:      params.Queries,
		Mode:         report.Mode,
		Roots:        params.Roots,
		Matches:      len(report.Matches),
		Errors:       len(report.Errors),
		FilesScanned: report.FilesScanned,
		Elapsed:      report.Elapsed,
		Cached:       report.Cached,
	}
	if err := a.Store.AppendHistory(a.ProjectID, entry); err != nil {
		a.log.Warn(ctx, "history write failed", slogger.Field("error", err.Error()))
	}
}

// History returns up to limit past searches, newest first.
func (a *App) History(limit int) ([]ports.HistoryEntry, error) {
	if a.Store == nil {
		return nil, errors.New("history store unavailable")
	}
	return a.Store.ListHistory(a.ProjectID, limit)
}

// ClearHistory drops the project's history and cached reports.
func (a *App) ClearHistory() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.DeleteProject(a.ProjectID)
}
