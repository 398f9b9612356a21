// Package types provides shared type definitions for docindex.
//
// # Chunks
//
// A splitter produces RawChunk values. NewChunk fingerprints them into
// Chunk values that flow through change detection, embedding and
// persistence:
//
//	chunk := types.NewChunk("docs/a.md", 0, types.RawChunk{
//	    Breadcrumb: "Guide > Install",
//	    Content:    "## Install\n\nRun the installer.",
//	})
//	// chunk.ContentHash is the hex SHA-256 of chunk.Content
//
// The content hash is the change-detection key. Two chunks with identical
// content share a hash regardless of where they appear, so reordering
// sections of a document does not change its set of hashes.
//
// # Run Reports
//
// RunReport accumulates per-file FileOutcome values. A failed file carries
// a FileError naming the stage that failed; the run itself continues.
//
//	report := types.NewRunReport(runID, false, time.Now())
//	report.Add(outcome)
//	report.Finish(pricePerToken, time.Now())
package types
