package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/internal/storage"
)

func TestWriter_EmptyInputMakesNoStoreCalls(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store)
	ctx := context.Background()

	require.NoError(t, w.Upsert(ctx, nil))
	n, err := w.DeleteByIDs(ctx, []int64{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.Writes())
}

func TestWriter_UpsertIsIdempotent(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store)
	ctx := context.Background()

	records := func() []*storage.ChunkRecord {
		return []*storage.ChunkRecord{
			{FilePath: "a.md", ContentHash: "h1", Content: "one"},
			{FilePath: "a.md", ContentHash: "h2", Content: "two"},
		}
	}

	first := records()
	require.NoError(t, w.Upsert(ctx, first))
	second := records()
	require.NoError(t, w.Upsert(ctx, second))

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
	assert.Equal(t, []string{"h1", "h2"}, store.hashes("a.md"))

	n, err := w.DeleteByIDs(ctx, []int64{first[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"h2"}, store.hashes("a.md"))
}
