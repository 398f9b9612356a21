package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/source"
	"github.com/dshills/docindex/internal/splitter"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
)

type watchRun struct {
	idx    *Indexer
	cancel context.CancelFunc
	done   chan error

	mu      sync.Mutex
	reports []*types.RunReport
}

func startWatch(t *testing.T, root string, store storage.Storage) *watchRun {
	t.Helper()
	src, err := source.NewFS(root)
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(8, nil, nil)
	require.NoError(t, err)

	wr := &watchRun{
		idx: New(Config{
			Source:   src,
			Chunker:  chunker.New(splitter.NewMarkdown(0, tokens.Heuristic{}), tokens.Heuristic{}),
			Store:    store,
			Embedder: emb,
			Logger:   discardLogger(),
		}),
		done: make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	wr.cancel = cancel
	go func() {
		wr.done <- wr.idx.Watch(ctx, WatchOptions{
			Options:  Options{Include: source.DefaultIncludes},
			Debounce: 30 * time.Millisecond,
			OnReport: func(r *types.RunReport, err error) {
				if err != nil {
					return
				}
				wr.mu.Lock()
				wr.reports = append(wr.reports, r)
				wr.mu.Unlock()
			},
		})
	}()

	require.Eventually(t, func() bool { return wr.runs() >= 1 }, 5*time.Second, 10*time.Millisecond, "initial run")
	return wr
}

func (wr *watchRun) runs() int {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return len(wr.reports)
}

func (wr *watchRun) stop(t *testing.T) {
	t.Helper()
	wr.cancel()
	select {
	case err := <-wr.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_ReindexesOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "start.md"), []byte("# Start\n\nHello.\n"), 0o644))

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	wr := startWatch(t, root, store)

	sub := filepath.Join(root, "guides")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "new.md"), []byte("# New\n\nFresh content.\n"), 0o644))

	require.Eventually(t, func() bool {
		paths, err := store.ListFilePaths(context.Background())
		return err == nil && len(paths) == 2
	}, 5*time.Second, 20*time.Millisecond, "file in new directory indexed")

	wr.stop(t)
}

func TestWatch_IgnoresOwnStoreUnderRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "start.md"), []byte("# Start\n\nHello.\n"), 0o644))

	store, err := storage.NewSQLiteStorage(filepath.Join(root, "index.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	wr := startWatch(t, root, store)

	// the initial run writes chunks and meta into index.db
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, wr.runs())

	wr.stop(t)
}

func TestWatch_IgnoresNonDocuments(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "start.md"), []byte("# Start\n\nHello.\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	wr := startWatch(t, root, store)

	for i := range 3 {
		require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.txt"), []byte(fmt.Sprintf("note %d", i)), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "README.md"), []byte(fmt.Sprintf("# Dep %d", i)), 0o644))
		time.Sleep(60 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, wr.runs())

	require.NoError(t, os.WriteFile(filepath.Join(root, "start.md"), []byte("# Start\n\nChanged.\n"), 0o644))
	require.Eventually(t, func() bool { return wr.runs() == 2 }, 5*time.Second, 10*time.Millisecond, "document change triggers a run")

	wr.stop(t)
}
