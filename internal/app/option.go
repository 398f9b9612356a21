package app

import (
	"log/slog"

	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*App)

// WithLogger sets the logger. The default is built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithStore uses store instead of opening the configured backend. The
// caller keeps ownership; Close does not close it.
func WithStore(store storage.Storage) Option {
	return func(a *App) {
		a.Store = store
		a.ownsStore = false
	}
}

// WithEmbedder uses e instead of the configured provider
func WithEmbedder(e embedder.Embedder) Option {
	return func(a *App) {
		a.Embedder = e
	}
}
