package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxDeleteBatch keeps IN lists under SQLite's bound parameter limit
const maxDeleteBatch = 500

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. Use ":memory:"
// for an ephemeral database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, rolling back on error
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Chunk operations

func (s *SQLiteStorage) ListChunkHashes(ctx context.Context, filePath string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT content_hash, id FROM doc_chunks WHERE file_path = ?", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLiteStorage) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT file_path FROM doc_chunks ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list file paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, filePath string) ([]*ChunkRecord, error) {
	query := `
		SELECT id, file_path, content_hash, breadcrumb, content, metadata, embedding,
		       dimension, token_count, provider, model, created_at, updated_at
		FROM doc_chunks
		WHERE file_path = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ChunkRecord
	for rows.Next() {
		var (
			rec      ChunkRecord
			metadata string
			blob     []byte
		)
		err := rows.Scan(&rec.ID, &rec.FilePath, &rec.ContentHash, &rec.Breadcrumb, &rec.Content,
			&metadata, &blob, &rec.Dimension, &rec.TokenCount, &rec.Provider, &rec.Model,
			&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %d: %w", rec.ID, err)
		}
		rec.Embedding = deserializeVector(blob)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) UpsertChunks(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertChunksWithQuerier(ctx, tx, records)
	})
}

// upsertChunksWithQuerier is the internal implementation that uses a querier
func upsertChunksWithQuerier(ctx context.Context, q querier, records []*ChunkRecord) error {
	query := `
		INSERT INTO doc_chunks (file_path, content_hash, breadcrumb, content, metadata, embedding,
		                        dimension, token_count, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path, content_hash) DO UPDATE SET
			breadcrumb = excluded.breadcrumb,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			token_count = excluded.token_count,
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	for _, rec := range records {
		metadata, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", rec.FilePath, err)
		}

		var id int64
		err = q.QueryRowContext(ctx, query,
			rec.FilePath, rec.ContentHash, rec.Breadcrumb, rec.Content, metadata,
			serializeVector(rec.Embedding), rec.Dimension, rec.TokenCount, rec.Provider, rec.Model,
			now, now,
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
}

func (s *SQLiteStorage) DeleteChunks(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(ids))
			n, err := deleteChunksBatchWithQuerier(ctx, tx, ids[start:end])
			if err != nil {
				return err
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// deleteChunksBatchWithQuerier deletes one IN-list batch of chunks
func deleteChunksBatchWithQuerier(ctx context.Context, q querier, ids []int64) (int, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM doc_chunks WHERE id IN (%s)", strings.Join(placeholders, ", "))
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{
		Backend: DriverSQLite + "/" + BuildMode,
		Meta:    make(map[string]string),
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT file_path), COUNT(*), COALESCE(SUM(token_count), 0) FROM doc_chunks",
	).Scan(&status.Files, &status.Chunks, &status.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	var lastUpdated time.Time
	err = s.db.QueryRowContext(ctx, "SELECT updated_at FROM doc_chunks ORDER BY updated_at DESC LIMIT 1").Scan(&lastUpdated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read last update: %w", err)
	default:
		status.LastUpdated = &lastUpdated
	}

	version, err := currentSchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	if status.VectorExtension, err = vectorExtensionVersion(ctx, s.db); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM index_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		status.Meta[k] = v
	}

	return status, rows.Err()
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO index_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
