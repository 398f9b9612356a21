package indexer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/docindex/internal/source"
	"github.com/dshills/docindex/pkg/types"
)

// DefaultDebounce is the quiet period after the last file event before a
// re-run starts
const DefaultDebounce = 500 * time.Millisecond

// ReportCallback receives the outcome of every watch-triggered run
type ReportCallback func(report *types.RunReport, err error)

// WatchOptions configures Watch
type WatchOptions struct {
	Options
	Debounce time.Duration
	OnReport ReportCallback
}

// Watch runs once, then re-runs whenever a document under the source root
// changes, until ctx is cancelled. Only events for paths that discovery
// would return trigger a run, so writes to a store kept under the root are
// ignored. Bursts of events are coalesced into a single run. New
// directories are watched as they appear; excluded directories are never
// watched.
func (idx *Indexer) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	include := opts.Include
	if len(include) == 0 {
		include = source.DefaultIncludes
	}
	matcher := source.NewMatcher(include, opts.Exclude)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	root := idx.source.Root()
	dirs := make(map[string]struct{})
	if err := addDirs(w, dirs, root, root, matcher); err != nil {
		return err
	}
	idx.logger.Info("watcher: started", slog.String("root", root))

	run := func() {
		report, err := idx.Run(ctx, opts.Options)
		if errors.Is(err, ErrIndexingInProgress) {
			idx.logger.Info("watcher: run skipped, indexing already in progress")
			return
		}
		if err != nil && ctx.Err() == nil {
			idx.logger.Error("watcher: run failed", slog.String("error", err.Error()))
		}
		if opts.OnReport != nil {
			opts.OnReport(report, err)
		}
	}

	run()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			timerCh = timer.C
			return
		}
		timer.Reset(opts.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			idx.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			run()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(w, dirs, root, matcher, ev, idx.logger) {
				idx.logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			idx.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev can change what discovery returns: a matching
// document, a new directory, or a watched directory going away. New
// directories are added to the watch as a side effect.
func relevant(w *fsnotify.Watcher, dirs map[string]struct{}, root string, matcher *source.Matcher, ev fsnotify.Event, logger *slog.Logger) bool {
	if ev.Op&fsnotify.Chmod == ev.Op {
		return false
	}
	rel, ok := relPath(root, ev.Name)
	if !ok {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if matcher.ExcludedDir(rel) {
				return false
			}
			if err := addDirs(w, dirs, root, ev.Name, matcher); err != nil {
				logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return true
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if _, ok := dirs[ev.Name]; ok {
			forgetDirs(dirs, ev.Name)
			return true
		}
	}

	return matcher.Match(rel)
}

// addDirs watches dir and its subdirectories, skipping excluded ones
func addDirs(w *fsnotify.Watcher, dirs map[string]struct{}, root, dir string, matcher *source.Matcher) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			rel, ok := relPath(root, path)
			if !ok || matcher.ExcludedDir(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.Add(path); err != nil {
			return err
		}
		dirs[path] = struct{}{}
		return nil
	})
}

func forgetDirs(dirs map[string]struct{}, dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(dirs, d)
		}
	}
}

func relPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
