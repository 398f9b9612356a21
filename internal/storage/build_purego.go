//go:build !sqlite_vec

package storage

// This file is compiled by default. It uses a pure Go SQLite
// implementation without the sqlite-vec extension.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

func vectorExtensionVersion(ctx context.Context, db *sql.DB) (string, error) {
	return "", nil
}
