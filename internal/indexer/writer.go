package indexer

import (
	"context"

	"github.com/dshills/docindex/internal/storage"
)

// Writer applies a file's change set to the store
type Writer struct {
	store storage.Storage
}

// NewWriter creates a writer over store
func NewWriter(store storage.Storage) *Writer {
	return &Writer{store: store}
}

// Upsert stores records keyed by (file path, content hash). Writing the
// same records twice leaves the store unchanged. Empty input makes no
// store call.
func (w *Writer) Upsert(ctx context.Context, records []*storage.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	return w.store.UpsertChunks(ctx, records)
}

// DeleteByIDs removes records and returns how many were removed. Empty
// input makes no store call.
func (w *Writer) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return w.store.DeleteChunks(ctx, ids)
}
