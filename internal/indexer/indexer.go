package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/source"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

// Fatal run errors. Anything else that goes wrong is recorded against a
// single file and the run moves on.
var (
	ErrIndexingInProgress = errors.New("indexing already in progress")
	ErrStoreUnavailable   = errors.New("chunk store unavailable")
	ErrDiscovery          = errors.New("file discovery failed")
)

// Indexer keeps a chunk store consistent with a documentation source:
// discover -> chunk -> diff -> embed -> write, one file at a time
type Indexer struct {
	source    source.Source
	chunker   *chunker.Chunker
	store     storage.Storage
	embedder  embedder.Embedder
	scheduler *embedder.Scheduler
	writer    *Writer
	logger    *slog.Logger
	lock      IndexLock

	now func() time.Time
}

// Config wires an Indexer's collaborators
type Config struct {
	Source      source.Source
	Chunker     *chunker.Chunker
	Store       storage.Storage
	Embedder    embedder.Embedder
	Concurrency int // Max in-flight embedding calls (default: 10)
	Logger      *slog.Logger
}

// Options controls a single run
type Options struct {
	DryRun        bool     // Report what would change without embedding or writing
	Force         bool     // Re-embed every chunk, even unchanged ones
	Include       []string // gitignore-style patterns ("*.md" matches at any depth, "/*.md" only at the root); empty uses source.DefaultIncludes
	Exclude       []string // Extra excludes on top of the standard ones
	PricePerToken float64  // USD per embedding token, for the cost estimate
	Concurrency   int      // Overrides Config.Concurrency for this run when > 0
}

// New creates an Indexer
func New(cfg Config) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:    cfg.Source,
		chunker:   cfg.Chunker,
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		scheduler: embedder.NewScheduler(cfg.Embedder, cfg.Concurrency),
		writer:    NewWriter(cfg.Store),
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs one indexing pass. A non-nil error with a nil report means
// the run never started (lock held, store unreachable, discovery failed).
// If ctx is cancelled between files the partial report is returned along
// with ctx.Err(). Per-file failures are only recorded in the report.
func (idx *Indexer) Run(ctx context.Context, opts Options) (*types.RunReport, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	report := types.NewRunReport(uuid.NewString(), opts.DryRun, idx.now())
	logger := idx.logger.With(slog.String("run_id", report.RunID))

	if err := idx.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	include := opts.Include
	if len(include) == 0 {
		include = source.DefaultIncludes
	}
	files, err := idx.source.Discover(include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	report.FilesDiscovered = len(files)

	stored, err := idx.store.ListFilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list indexed files: %w", ErrStoreUnavailable, err)
	}
	removed := removedFiles(files, stored)

	logger.Info("index: run started",
		slog.Int("files", len(files)),
		slog.Int("removed", len(removed)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("force", opts.Force))

	idx.checkEmbeddingModel(ctx, logger, opts.Force)

	scheduler := idx.scheduler
	if opts.Concurrency > 0 && opts.Concurrency != scheduler.MaxConcurrency() {
		scheduler = embedder.NewScheduler(idx.embedder, opts.Concurrency)
	}

	process := func(path string, isRemoved bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := idx.processFile(ctx, scheduler, path, isRemoved, opts)
		report.Add(outcome)
		if outcome.Err != nil {
			logger.Warn("index: file failed",
				slog.String("path", path),
				slog.String("stage", string(outcome.Err.Stage)),
				slog.String("error", outcome.Err.Err.Error()))
			return nil
		}
		logger.Debug("index: file done",
			slog.String("path", path),
			slog.Int("indexed", outcome.Indexed),
			slog.Int("skipped", outcome.Skipped),
			slog.Int("deleted", outcome.Deleted),
			slog.Int("tokens", outcome.Tokens))
		return nil
	}

	for _, path := range files {
		if err := process(path, false); err != nil {
			report.Finish(opts.PricePerToken, idx.now())
			return report, err
		}
	}
	for _, path := range removed {
		if err := process(path, true); err != nil {
			report.Finish(opts.PricePerToken, idx.now())
			return report, err
		}
	}

	report.Finish(opts.PricePerToken, idx.now())

	if !opts.DryRun {
		idx.recordRun(ctx, logger, report)
	}

	logger.Info("index: run complete",
		slog.Int("files_processed", report.FilesProcessed),
		slog.Int("files_failed", report.FilesFailed),
		slog.Int("chunks_indexed", report.ChunksIndexed),
		slog.Int("chunks_skipped", report.ChunksSkipped),
		slog.Int("chunks_deleted", report.ChunksDeleted),
		slog.Int("tokens_used", report.TokensUsed),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// processFile runs chunk -> diff -> embed -> write for one file. A removed
// file has no fresh chunks, so every stored record for it is an orphan.
func (idx *Indexer) processFile(ctx context.Context, scheduler *embedder.Scheduler, path string, removed bool, opts Options) types.FileOutcome {
	outcome := types.FileOutcome{Path: path, Removed: removed}
	fail := func(stage types.Stage, err error) types.FileOutcome {
		outcome.Err = &types.FileError{Path: path, Stage: stage, Err: err}
		return outcome
	}

	var fresh []*types.Chunk
	if !removed {
		content, err := idx.source.Read(path)
		if err != nil {
			return fail(types.StageRead, err)
		}
		fresh, err = idx.chunker.ChunkFile(path, content)
		if err != nil {
			return fail(types.StageChunk, err)
		}
	}

	changes, err := idx.resolve(ctx, path, fresh, opts.Force)
	if err != nil {
		return fail(types.StageDiff, err)
	}
	outcome.Skipped = len(changes.Unchanged)
	outcome.ProjectedTokens = changes.ProjectedTokens()

	if opts.DryRun {
		outcome.Indexed = len(changes.ToUpsert)
		outcome.Deleted = len(changes.OrphanIDs)
		return outcome
	}

	if len(changes.ToUpsert) > 0 {
		records, tokens, err := idx.embed(ctx, scheduler, changes.ToUpsert)
		outcome.Tokens = tokens
		if err != nil {
			return fail(types.StageEmbed, err)
		}
		if err := idx.writer.Upsert(ctx, records); err != nil {
			return fail(types.StageWrite, err)
		}
		outcome.Indexed = len(records)
	}

	deleted, err := idx.writer.DeleteByIDs(ctx, changes.OrphanIDs)
	if err != nil {
		return fail(types.StageDelete, err)
	}
	outcome.Deleted = deleted

	return outcome
}

// embed generates vectors for chunks and pairs them into records. Tokens
// billed for successful items are returned even when others failed; any
// failure fails the whole file so nothing is written.
func (idx *Indexer) embed(ctx context.Context, scheduler *embedder.Scheduler, chunks []*types.Chunk) ([]*storage.ChunkRecord, int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	results := scheduler.Embed(ctx, texts)
	tokens := embedder.TotalTokens(results)
	if err := embedder.Err(results); err != nil {
		return nil, tokens, err
	}

	records := make([]*storage.ChunkRecord, len(chunks))
	for i, c := range chunks {
		emb := results[i].Embedding
		records[i] = &storage.ChunkRecord{
			FilePath:    c.FilePath,
			ContentHash: c.ContentHash,
			Breadcrumb:  c.Breadcrumb,
			Content:     c.Content,
			Metadata:    c.Metadata,
			Embedding:   emb.Vector,
			Dimension:   emb.Dimension,
			TokenCount:  c.TokenCount,
			Provider:    emb.Provider,
			Model:       emb.Model,
		}
	}
	return records, tokens, nil
}

// checkEmbeddingModel warns when the store was built with a different
// model: unchanged chunks keep their old vectors unless forced.
func (idx *Indexer) checkEmbeddingModel(ctx context.Context, logger *slog.Logger, force bool) {
	current := embedder.Identity(idx.embedder)
	stored, err := idx.store.GetMeta(ctx, storage.MetaEmbeddingModel)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return
	case err != nil:
		logger.Warn("index: read embedding model failed", slog.String("error", err.Error()))
		return
	}
	if stored != current && !force {
		logger.Warn("index: embedding model changed, run with --force to re-embed unchanged chunks",
			slog.String("stored", stored),
			slog.String("current", current))
	}
}

// recordRun stores bookkeeping after a completed run. Failures are logged
// only; the chunks themselves are already consistent.
func (idx *Indexer) recordRun(ctx context.Context, logger *slog.Logger, report *types.RunReport) {
	if err := idx.store.SetMeta(ctx, storage.MetaEmbeddingModel, embedder.Identity(idx.embedder)); err != nil {
		logger.Warn("index: store embedding model failed", slog.String("error", err.Error()))
	}
	if err := idx.store.SetMeta(ctx, storage.MetaLastRunAt, report.StartedAt.UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("index: store last run failed", slog.String("error", err.Error()))
	}
}

// removedFiles returns the stored paths that discovery no longer finds,
// sorted
func removedFiles(discovered, stored []string) []string {
	current := make(map[string]struct{}, len(discovered))
	for _, p := range discovered {
		current[p] = struct{}{}
	}
	var removed []string
	for _, p := range stored {
		if _, ok := current[p]; !ok {
			removed = append(removed, p)
		}
	}
	slices.Sort(removed)
	return removed
}
