package types

import (
	"encoding/json"
	"time"
)

// FileOutcome is the result of processing one file during a run
type FileOutcome struct {
	Path            string
	Removed         bool // File no longer exists in the source set
	Indexed         int  // Chunks embedded and upserted (or that would be, in dry-run)
	Skipped         int  // Chunks whose hash was already stored
	Deleted         int  // Orphaned records removed (or that would be, in dry-run)
	Tokens          int  // Embedding tokens consumed
	ProjectedTokens int  // Estimated tokens for chunks that need embedding
	Err             *FileError
}

// RunReport aggregates the outcome of a single indexing run. It is built
// fresh for every run and never persisted.
type RunReport struct {
	RunID     string
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration

	FilesDiscovered int
	FilesProcessed  int
	FilesRemoved    int
	FilesFailed     int

	ChunksIndexed int
	ChunksSkipped int
	ChunksDeleted int

	TokensUsed      int
	ProjectedTokens int
	EstimatedCost   float64

	Files  []FileOutcome
	Errors []FileError
}

// NewRunReport creates an empty report for a run
func NewRunReport(runID string, dryRun bool, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		DryRun:    dryRun,
		StartedAt: startedAt,
	}
}

// Add folds a file outcome into the report totals
func (r *RunReport) Add(o FileOutcome) {
	r.FilesProcessed++
	if o.Removed {
		r.FilesRemoved++
	}
	r.Files = append(r.Files, o)

	// Counts from a failed file still reflect work that landed before the
	// failure, e.g. an upsert that succeeded ahead of a failed delete.
	r.ChunksIndexed += o.Indexed
	r.ChunksSkipped += o.Skipped
	r.ChunksDeleted += o.Deleted
	r.TokensUsed += o.Tokens
	r.ProjectedTokens += o.ProjectedTokens

	if o.Err != nil {
		r.FilesFailed++
		r.Errors = append(r.Errors, *o.Err)
	}
}

// Finish computes derived totals. pricePerToken is in USD.
func (r *RunReport) Finish(pricePerToken float64, now time.Time) {
	r.EstimatedCost = float64(r.TokensUsed) * pricePerToken
	r.Duration = now.Sub(r.StartedAt)
}

// HasErrors reports whether any file failed
func (r *RunReport) HasErrors() bool {
	return r.FilesFailed > 0
}

// Outcome returns the outcome recorded for path
func (r *RunReport) Outcome(path string) (FileOutcome, bool) {
	for _, o := range r.Files {
		if o.Path == path {
			return o, true
		}
	}
	return FileOutcome{}, false
}

// MarshalJSON renders the report with snake_case keys and string errors
func (r *RunReport) MarshalJSON() ([]byte, error) {
	type fileError struct {
		Path  string `json:"path"`
		Stage Stage  `json:"stage"`
		Error string `json:"error"`
	}
	errs := make([]fileError, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		errs = append(errs, fileError{Path: e.Path, Stage: e.Stage, Error: msg})
	}

	return json.Marshal(map[string]any{
		"run_id":           r.RunID,
		"dry_run":          r.DryRun,
		"started_at":       r.StartedAt,
		"duration_ms":      r.Duration.Milliseconds(),
		"files_discovered": r.FilesDiscovered,
		"files_processed":  r.FilesProcessed,
		"files_removed":    r.FilesRemoved,
		"files_failed":     r.FilesFailed,
		"chunks_indexed":   r.ChunksIndexed,
		"chunks_skipped":   r.ChunksSkipped,
		"chunks_deleted":   r.ChunksDeleted,
		"tokens_used":      r.TokensUsed,
		"projected_tokens": r.ProjectedTokens,
		"estimated_cost":   r.EstimatedCost,
		"errors":           errs,
	})
}
