// Package app wires configuration into a ready-to-run indexer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/logger"
	"github.com/dshills/docindex/internal/mcp"
	"github.com/dshills/docindex/internal/source"
	"github.com/dshills/docindex/internal/splitter"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
)

// ProbeText is embedded by Probe
const ProbeText = "docindex embedding probe"

// App holds the collaborators built from a Config
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Source   source.Source
	Store    storage.Storage
	Embedder embedder.Embedder
	Indexer  *indexer.Indexer

	ownsStore bool
}

// New builds the application from cfg. A store that cannot be opened is a
// setup error.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	a := &App{Config: cfg, ownsStore: true}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = logger.New(cfg.Log.Logger())
	}

	src, err := source.NewFS(cfg.Source.Root)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	a.Source = src

	counter := tokens.New(cfg.Chunking.Encoding, a.Logger)

	if a.Embedder == nil {
		a.Embedder, err = embedder.New(embedder.Config{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
			CacheSize:  cfg.Embedding.CacheSize,
			Counter:    counter,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}

	if a.Store == nil {
		if err := ensureSQLiteDir(cfg.Store); err != nil {
			return nil, err
		}
		a.Store, err = storage.Open(ctx, cfg.Store.Storage())
		if err != nil {
			_ = a.Embedder.Close()
			return nil, fmt.Errorf("%w: %w", indexer.ErrStoreUnavailable, err)
		}
	}

	a.Indexer = indexer.New(indexer.Config{
		Source:      a.Source,
		Chunker:     chunker.New(splitter.NewMarkdown(cfg.Chunking.MaxTokens, counter), counter),
		Store:       a.Store,
		Embedder:    a.Embedder,
		Concurrency: cfg.Embedding.Concurrency,
		Logger:      a.Logger,
	})

	a.Logger.Debug("app: initialized",
		slog.String("root", src.Root()),
		slog.String("store", cfg.Store.Driver),
		slog.String("embedder", embedder.Identity(a.Embedder)))

	return a, nil
}

// Close releases the store and embedder
func (a *App) Close() error {
	var errs []error
	if a.ownsStore && a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	return errors.Join(errs...)
}

// RunOptions returns the run options implied by the config
func (a *App) RunOptions() indexer.Options {
	return indexer.Options{
		Include:       a.Config.Source.Include,
		Exclude:       a.Config.Source.Exclude,
		PricePerToken: a.Config.Embedding.PricePerToken(),
	}
}

// Index performs one run
func (a *App) Index(ctx context.Context, opts indexer.Options) (*types.RunReport, error) {
	return a.Indexer.Run(ctx, opts)
}

// Watch re-indexes on every change until ctx is cancelled
func (a *App) Watch(ctx context.Context, opts indexer.Options, onReport indexer.ReportCallback) error {
	return a.Indexer.Watch(ctx, indexer.WatchOptions{
		Options:  opts,
		Debounce: a.Config.Watch.Debounce,
		OnReport: onReport,
	})
}

// Serve runs the MCP server on in/out. With watch, the index is also kept
// current in the background; both stop when the client disconnects or
// ctx is cancelled.
func (a *App) Serve(ctx context.Context, watch bool, in io.Reader, out io.Writer) error {
	server := mcp.NewServer(a.Indexer, a.Store, a.RunOptions(), a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if watch {
		g.Go(func() error {
			return a.Watch(serveCtx, a.RunOptions(), func(r *types.RunReport, err error) {
				if err == nil && r != nil && r.HasErrors() {
					a.Logger.Warn("watch: run finished with errors", slog.Int("files_failed", r.FilesFailed))
				}
			})
		})
	}

	g.Go(func() error {
		defer cancel()
		return server.Serve(serveCtx, in, out)
	})

	return g.Wait()
}

// Status reports the store contents
func (a *App) Status(ctx context.Context) (*storage.Status, error) {
	return a.Store.GetStatus(ctx)
}

// Probe embeds ProbeText to check the provider configuration
func (a *App) Probe(ctx context.Context) (*embedder.Embedding, error) {
	emb, err := a.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: ProbeText})
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", embedder.Identity(a.Embedder), err)
	}
	return emb, nil
}

func ensureSQLiteDir(cfg config.StoreConfig) error {
	if cfg.Driver != storage.DriverSQLite || cfg.SQLitePath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(cfg.SQLitePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return nil
}
