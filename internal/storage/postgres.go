package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS doc_chunks (
    id BIGSERIAL PRIMARY KEY,
    file_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    breadcrumb TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    embedding vector,
    dimension INTEGER NOT NULL DEFAULT 0,
    token_count INTEGER NOT NULL DEFAULT 0,
    provider TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (file_path, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_doc_chunks_file ON doc_chunks(file_path);

CREATE TABLE IF NOT EXISTS index_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// postgresSchemaVersion is reported by GetStatus; the schema is created
// idempotently on open rather than migrated
const postgresSchemaVersion = "1.1.0"

// PostgresStorage implements the Storage interface on Postgres with the
// pgvector extension
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to dsn and ensures the schema exists
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStorage) ListChunkHashes(ctx context.Context, filePath string) (map[string]int64, error) {
	rows, err := p.pool.Query(ctx, "SELECT content_hash, id FROM doc_chunks WHERE file_path = $1", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]int64)
	for rows.Next() {
		var (
			hash string
			id   int64
		)
		if err := rows.Scan(&hash, &id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hash: %w", err)
		}
		hashes[hash] = id
	}
	return hashes, rows.Err()
}

func (p *PostgresStorage) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT DISTINCT file_path FROM doc_chunks ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list file paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan file paths: %w", err)
	}
	return paths, nil
}

func (p *PostgresStorage) ListChunksByFile(ctx context.Context, filePath string) ([]*ChunkRecord, error) {
	query := `
		SELECT id, file_path, content_hash, breadcrumb, content, metadata, embedding,
		       dimension, token_count, provider, model, created_at, updated_at
		FROM doc_chunks
		WHERE file_path = $1
		ORDER BY id
	`
	rows, err := p.pool.Query(ctx, query, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var records []*ChunkRecord
	for rows.Next() {
		var (
			rec      ChunkRecord
			metadata []byte
			vec      *pgvector.Vector
		)
		err := rows.Scan(&rec.ID, &rec.FilePath, &rec.ContentHash, &rec.Breadcrumb, &rec.Content,
			&metadata, &vec, &rec.Dimension, &rec.TokenCount, &rec.Provider, &rec.Model,
			&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %d: %w", rec.ID, err)
		}
		if vec != nil {
			rec.Embedding = vec.Slice()
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (p *PostgresStorage) UpsertChunks(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO doc_chunks (file_path, content_hash, breadcrumb, content, metadata, embedding,
		                        dimension, token_count, provider, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (file_path, content_hash) DO UPDATE SET
			breadcrumb = EXCLUDED.breadcrumb,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			dimension = EXCLUDED.dimension,
			token_count = EXCLUDED.token_count,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			metadata, err := encodeMetadata(rec.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", rec.FilePath, err)
			}

			var embedding any
			if len(rec.Embedding) > 0 {
				embedding = pgvector.NewVector(rec.Embedding)
			}

			var id int64
			err = tx.QueryRow(ctx, query,
				rec.FilePath, rec.ContentHash, rec.Breadcrumb, rec.Content, metadata,
				embedding, rec.Dimension, rec.TokenCount, rec.Provider, rec.Model, now,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to upsert chunk %s@%s: %w", rec.FilePath, shortHash(rec.ContentHash), err)
			}

			rec.ID = id
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			rec.UpdatedAt = now
		}
		return nil
	})
}

func (p *PostgresStorage) DeleteChunks(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := p.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{
		Backend:       DriverPostgres,
		SchemaVersion: postgresSchemaVersion,
		Meta:          make(map[string]string),
	}

	err := p.pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT file_path), COUNT(*), COALESCE(SUM(token_count), 0), MAX(updated_at) FROM doc_chunks",
	).Scan(&status.Files, &status.Chunks, &status.Tokens, &status.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	err = p.pool.QueryRow(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&status.VectorExtension)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read vector extension version: %w", err)
	}

	rows, err := p.pool.Query(ctx, "SELECT key, value FROM index_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		status.Meta[k] = v
	}

	return status, rows.Err()
}

func (p *PostgresStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx, "SELECT value FROM index_meta WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresStorage) SetMeta(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO index_meta (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := p.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}
