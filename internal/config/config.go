// Package config defines the docindex configuration file.
package config

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/logger"
	"github.com/dshills/docindex/internal/source"
	"github.com/dshills/docindex/internal/splitter"
	"github.com/dshills/docindex/internal/storage"
	yamlconfig "github.com/dshills/docindex/pkg/config"
)

// DefaultFile is read when no --config flag is given and it exists
const DefaultFile = "docindex.yaml"

// DefaultPricePerMillionTokens is the embedding cost estimate in USD
const DefaultPricePerMillionTokens = 0.02

// Config represents the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Source    SourceConfig    `yaml:"source"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Watch     WatchConfig     `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Log),
		validation.Field(&c.Source),
		validation.Field(&c.Chunking),
		validation.Field(&c.Store),
		validation.Field(&c.Embedding),
		validation.Field(&c.Watch),
	)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  slog.Level `yaml:"level"`
	Format string     `yaml:"format"`
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Format, validation.In(logger.FormatJSON, logger.FormatText)),
	)
}

// Logger converts to the logger package configuration
func (c LogConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format}
}

// SourceConfig selects the documents to index. Include and Exclude use
// gitignore pattern syntax, not shell globs: a pattern without a slash
// such as "*.md" matches at any depth, and a leading "/" anchors it to
// Root ("/*.md" is top-level files only). Exclude adds to the standard
// excludes (node_modules, vendor, build output, .git, .docindex).
type SourceConfig struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

func (c SourceConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Include, validation.Required),
	)
}

// ChunkingConfig controls splitting and token counting.
type ChunkingConfig struct {
	MaxTokens int    `yaml:"max_tokens"`
	Encoding  string `yaml:"encoding"` // tiktoken encoding, or "heuristic"
}

func (c ChunkingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(16)),
	)
}

// StoreConfig selects the chunk store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

func (c StoreConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(storage.DriverSQLite, storage.DriverPostgres)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == storage.DriverSQLite, validation.Required)),
		validation.Field(&c.PostgresDSN, validation.When(c.Driver == storage.DriverPostgres, validation.Required)),
	)
}

// Storage converts to the storage package configuration
func (c StoreConfig) Storage() storage.Config {
	return storage.Config{
		Driver:      c.Driver,
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// EmbeddingConfig selects the embedding provider and run limits.
type EmbeddingConfig struct {
	Provider              string  `yaml:"provider"`
	Model                 string  `yaml:"model"`
	APIKey                string  `yaml:"api_key"`
	BaseURL               string  `yaml:"base_url"`
	Dimensions            int     `yaml:"dimensions"`
	Concurrency           int     `yaml:"concurrency"`
	PricePerMillionTokens float64 `yaml:"price_per_million_tokens"`
	CacheSize             int     `yaml:"cache_size"`
}

func (c EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In(
			embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderOllama)),
		validation.Field(&c.Dimensions, validation.Min(0)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(256)),
		validation.Field(&c.PricePerMillionTokens, validation.Min(0.0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// PricePerToken returns the USD cost of one embedding token
func (c EmbeddingConfig) PricePerToken() float64 {
	return c.PricePerMillionTokens / 1_000_000
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

func (c WatchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: logger.FormatText,
		},
		Source: SourceConfig{
			Root:    ".",
			Include: append([]string(nil), source.DefaultIncludes...),
		},
		Chunking: ChunkingConfig{
			MaxTokens: splitter.DefaultMaxTokens,
			Encoding:  "cl100k_base",
		},
		Store: StoreConfig{
			Driver:     storage.DriverSQLite,
			SQLitePath: ".docindex/index.db",
		},
		Embedding: EmbeddingConfig{
			Provider:              embedder.ProviderLocal,
			Concurrency:           embedder.DefaultMaxConcurrency,
			PricePerMillionTokens: DefaultPricePerMillionTokens,
			CacheSize:             1000,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults. An empty path reads DefaultFile if
// present and otherwise uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		if err := yamlconfig.LoadOptional(DefaultFile, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := yamlconfig.Load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel parses a --log-level value
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
