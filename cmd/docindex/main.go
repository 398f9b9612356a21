package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dshills/docindex/internal/app"
	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/report"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdin, os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "docindex",
		Usage: "Incrementally index documentation into a vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default " + config.DefaultFile + " if present)",
				Sources: cli.EnvVars("DOCINDEX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Override the configured log level (debug, info, warn, error)",
				Sources: cli.EnvVars("DOCINDEX_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "Index changed documents once",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Report what would change without embedding or writing"},
					&cli.BoolFlag{Name: "force", Usage: "Re-embed every chunk"},
					&cli.IntFlag{Name: "concurrency", Usage: "Override the embedding concurrency"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(a *app.App) error {
						r, err := a.Index(ctx, runOptions(a, cmd))
						if r != nil {
							if renderErr := report.Render(stdout, r); renderErr != nil {
								return renderErr
							}
							logFailures(a.Logger, r)
						}
						return err
					})
				},
			},
			{
				Name:  "watch",
				Usage: "Index, then re-index whenever documents change",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "concurrency", Usage: "Override the embedding concurrency"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(a *app.App) error {
						return a.Watch(ctx, runOptions(a, cmd), func(r *types.RunReport, err error) {
							if r == nil {
								return
							}
							if renderErr := report.Render(stdout, r); renderErr != nil {
								a.Logger.Warn("watch: render report failed", slog.String("error", renderErr.Error()))
							}
							logFailures(a.Logger, r)
						})
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show what the store holds",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(a *app.App) error {
						st, err := a.Status(ctx)
						if err != nil {
							return err
						}
						return report.RenderStatus(stdout, st)
					})
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the index_docs and get_status tools over MCP stdio",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Usage: "Keep the index current while serving"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(a *app.App) error {
						a.Logger.Info("docindex: serving on stdio",
							slog.String("version", version),
							slog.Bool("watch", cmd.Bool("watch")))
						return a.Serve(ctx, cmd.Bool("watch"), stdin, stdout)
					})
				},
			},
			{
				Name:  "probe",
				Usage: "Embed a short text to check the provider configuration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(a *app.App) error {
						emb, err := a.Probe(ctx)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(stdout, "Provider: %s\nModel: %s\nDimension: %d\nTokens: %d\n",
							emb.Provider, emb.Model, emb.Dimension, emb.TokenCount)
						return err
					})
				},
			},
			{
				Name:  "version",
				Usage: "Print version and build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(stdout,
						"docindex\nVersion: %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\nVector Extension: %v\nEmbedders: %s, %s, %s, %s\n",
						version, buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable,
						embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderOllama)
					return err
				},
			},
		},
	}
}

func withApp(ctx context.Context, cmd *cli.Command, fn func(*app.App) error) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		level, err := config.ParseLevel(lvl)
		if err != nil {
			return err
		}
		cfg.Log.Level = level
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("docindex: close failed", slog.String("error", closeErr.Error()))
		}
	}()

	return fn(a)
}

func runOptions(a *app.App, cmd *cli.Command) indexer.Options {
	opts := a.RunOptions()
	opts.DryRun = cmd.Bool("dry-run")
	opts.Force = cmd.Bool("force")
	opts.Concurrency = int(cmd.Int("concurrency"))
	return opts
}

// Per-file failures are reported, not fatal
func logFailures(logger *slog.Logger, r *types.RunReport) {
	if r.HasErrors() {
		logger.Warn("docindex: some files failed",
			slog.Int("files_failed", r.FilesFailed),
			slog.String("run_id", r.RunID))
	}
}
