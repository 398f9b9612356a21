package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownDriver is returned by Open for an unsupported backend
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Backend names
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Meta keys
const (
	MetaEmbeddingModel = "embedding_model"
	MetaLastRunAt      = "last_run_at"
)

// Storage persists indexed chunk records. Records are keyed by
// (file path, content hash); the store assigns each an opaque ID.
type Storage interface {
	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// ListChunkHashes returns content hash -> record ID for every record
	// stored under filePath
	ListChunkHashes(ctx context.Context, filePath string) (map[string]int64, error)

	// ListFilePaths returns every file path with at least one record, sorted
	ListFilePaths(ctx context.Context) ([]string, error)

	// ListChunksByFile returns the full records stored under filePath
	ListChunksByFile(ctx context.Context, filePath string) ([]*ChunkRecord, error)

	// UpsertChunks inserts records or updates them in place on a
	// (file path, content hash) conflict, in a single transaction. The
	// assigned IDs are written back to the records.
	UpsertChunks(ctx context.Context, records []*ChunkRecord) error

	// DeleteChunks removes records by ID and returns how many were removed.
	// An empty slice is a no-op.
	DeleteChunks(ctx context.Context, ids []int64) (int, error)

	// Status and bookkeeping
	GetStatus(ctx context.Context) (*Status, error)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Close releases the underlying connections
	Close() error
}

// ChunkRecord is a persisted, embedded chunk
type ChunkRecord struct {
	ID          int64
	FilePath    string
	ContentHash string
	Breadcrumb  string
	Content     string
	Metadata    map[string]any
	Embedding   []float32
	Dimension   int
	TokenCount  int
	Provider    string
	Model       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status summarizes the contents of the store
type Status struct {
	Backend         string
	SchemaVersion   string
	VectorExtension string // Version of the vector extension, empty if none
	Files           int
	Chunks          int
	Tokens          int64
	LastUpdated     *time.Time
	Meta            map[string]string
}

// Config selects and configures a backend
type Config struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open creates the configured backend
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		s, err := NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgresStorage(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ErrUnknownDriver
	}
}
