// Package storage persists embedded documentation chunks.
//
// A record is identified by its (file path, content hash) pair and carries
// the chunk text, its breadcrumb, JSON metadata, and the embedding vector.
// Writes are idempotent: upserting a record whose pair already exists
// updates it in place and keeps its ID.
//
// # Backends
//
// Two backends implement Storage:
//   - SQLiteStorage: a single-file database with versioned migrations.
//     The default build uses modernc.org/sqlite (pure Go). Building with
//     -tags sqlite_vec switches to mattn/go-sqlite3 and loads the
//     sqlite-vec extension.
//   - PostgresStorage: Postgres with the pgvector extension, via pgx.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, storage.Config{
//	    Driver:     storage.DriverSQLite,
//	    SQLitePath: ".docindex/index.db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	hashes, err := store.ListChunkHashes(ctx, "docs/guide.md")
//
// # Index Metadata
//
// Small key/value pairs such as the embedding model identity and the time
// of the last run are kept alongside the chunks and exposed via GetMeta,
// SetMeta and GetStatus.
package storage
