package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrMissingFilePath = errors.New("file path is required")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrHashMismatch    = errors.New("content hash does not match content")
)

// Stage names the step of per-file processing that failed
type Stage string

const (
	StageRead   Stage = "read"
	StageChunk  Stage = "chunk"
	StageDiff   Stage = "diff"
	StageEmbed  Stage = "embed"
	StageWrite  Stage = "write"
	StageDelete Stage = "delete"
)

// FileError records a failure that aborted processing of a single file.
// The run continues with the next file.
type FileError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
