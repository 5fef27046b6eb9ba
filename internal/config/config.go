// Package config holds shapegrep's configuration, loaded through viper from
// defaults, an optional .shapegrep.yaml, SHAPEGREP_* environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// Config holds the complete application configuration.
type Config struct {
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Watch  WatchConfig  `mapstructure:"watch"`
}

// SearchConfig tunes the engine.
type SearchConfig struct {
	Mode            string `mapstructure:"mode"`
	Workers         int    `mapstructure:"workers"`
	MaxWorkers      int    `mapstructure:"max_workers"`
	ChunkSize       int    `mapstructure:"chunk_size"`
	MaxFileSize     int64  `mapstructure:"max_file_size"`
	AttemptBudget   int    `mapstructure:"attempt_budget"`
	FileBudget      int    `mapstructure:"file_budget"`
	TextFallback    bool   `mapstructure:"text_fallback"`
	DefaultLanguage string `mapstructure:"default_language"`
	CaseInsensitive bool   `mapstructure:"case_insensitive"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the history and report cache database.
type StoreConfig struct {
	// Path of the bbolt file. Empty means <root>/.shapegrep/store.db.
	Path string `mapstructure:"path"`
	// Cache enables the report cache.
	Cache bool `mapstructure:"cache"`
	// History is the number of history entries kept per project.
	History int `mapstructure:"history"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.mode", string(ports.ModeExact))
	v.SetDefault("search.workers", 0)
	v.SetDefault("search.max_workers", 32)
	v.SetDefault("search.chunk_size", 0)
	v.SetDefault("search.max_file_size", 2<<20)
	v.SetDefault("search.attempt_budget", 200_000)
	v.SetDefault("search.file_budget", 5_000_000)
	v.SetDefault("search.text_fallback", false)
	v.SetDefault("search.default_language", string(ports.LangJavaScript))
	v.SetDefault("search.case_insensitive", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.path", "")
	v.SetDefault("store.cache", true)
	v.SetDefault("store.history", 500)

	v.SetDefault("watch.debounce", 50*time.Millisecond)
}

// New decodes and validates the configuration held by v.
func New(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := ports.ParseMode(c.Search.Mode); err != nil {
		return fmt.Errorf("search.mode: %w", err)
	}
	if _, err := ports.ParseLanguage(c.Search.DefaultLanguage); err != nil {
		return fmt.Errorf("search.default_language: %w", err)
	}
	if c.Search.Workers < 0 {
		return errors.New("search.workers must not be negative")
	}
	if c.Search.MaxWorkers < 0 {
		return errors.New("search.max_workers must not be negative")
	}
	if c.Search.ChunkSize < 0 {
		return errors.New("search.chunk_size must not be negative")
	}
	if c.Search.MaxFileSize < 1 {
		return errors.New("search.max_file_size must be at least 1")
	}
	if c.Search.AttemptBudget < 1 || c.Search.FileBudget < 1 {
		return errors.New("search budgets must be at least 1")
	}
	if c.Search.FileBudget < c.Search.AttemptBudget {
		return errors.New("search.file_budget must not be below search.attempt_budget")
	}
	if _, err := slogger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Store.History < 0 {
		return errors.New("store.history must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	return nil
}

// Mode returns the validated default search mode.
func (c *Config) Mode() ports.Mode {
	m, _ := ports.ParseMode(c.Search.Mode)
	return m
}

// DefaultLanguage returns the validated fallback language.
func (c *Config) DefaultLanguage() ports.Language {
	l, _ := ports.ParseLanguage(c.Search.DefaultLanguage)
	return l
}
