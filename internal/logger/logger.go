// Package logger builds the process slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config selects level and output format
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig logs text at info level
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
	}
}

// New creates a logger writing to stderr and installs it as the default.
// Stdout is left alone because the MCP server speaks JSON-RPC over it.
func New(cfg Config) *slog.Logger {
	logger := NewWithWriter(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
