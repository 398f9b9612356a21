package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresStorage starts a pgvector container. The test is skipped
// when docker is unreachable or -short is set.
func newPostgresStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	pool.MaxWait = 90 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=docindex",
			"POSTGRES_PASSWORD=docindex",
			"POSTGRES_DB=docindex",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(180)

	dsn := fmt.Sprintf("postgres://docindex:docindex@%s/docindex?sslmode=disable", resource.GetHostPort("5432/tcp"))

	var store *PostgresStorage
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := NewPostgresStorage(ctx, dsn)
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStorage(t *testing.T) {
	s := newPostgresStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	first := testRecord("docs/a.md", "h1", "Install")
	second := testRecord("docs/a.md", "h2", "Usage")
	require.NoError(t, s.UpsertChunks(ctx, []*ChunkRecord{first, second}))
	require.NotZero(t, first.ID)

	again := testRecord("docs/a.md", "h1", "Install")
	require.NoError(t, s.UpsertChunks(ctx, []*ChunkRecord{again}))
	assert.Equal(t, first.ID, again.ID)

	hashes, err := s.ListChunkHashes(ctx, "docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"h1": first.ID, "h2": second.ID}, hashes)

	records, err := s.ListChunksByFile(ctx, "docs/a.md")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, records[0].Embedding)
	assert.Equal(t, float64(2), records[0].Metadata["level"])

	n, err := s.DeleteChunks(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteChunks(ctx, []int64{second.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	paths, err := s.ListFilePaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md"}, paths)

	_, err = s.GetMeta(ctx, MetaEmbeddingModel)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.SetMeta(ctx, MetaEmbeddingModel, "local/local-hash"))

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, status.Backend)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, 1, status.Chunks)
	assert.NotEmpty(t, status.VectorExtension)
	assert.NotNil(t, status.LastUpdated)
	assert.Equal(t, "local/local-hash", status.Meta[MetaEmbeddingModel])
}
