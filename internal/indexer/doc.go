// Package indexer keeps a chunk store consistent with a documentation
// source.
//
// # Basic Usage
//
//	idx := indexer.New(indexer.Config{
//	    Source:      src,
//	    Chunker:     chunker.New(splitter.NewMarkdown(512, counter), counter),
//	    Store:       store,
//	    Embedder:    emb,
//	    Concurrency: 10,
//	    Logger:      logger,
//	})
//
//	report, err := idx.Run(ctx, indexer.Options{Include: source.DefaultIncludes})
//
// # Run
//
// A run discovers files and processes them one at a time:
//
//  1. Chunk: split the file and fingerprint every chunk by content hash
//  2. Diff: compare the fresh hashes with the hashes stored for the file
//  3. Embed: generate vectors for new hashes only, with a bounded number
//     of provider calls in flight
//  4. Write: upsert the new records, then delete the orphans
//
// Files that were indexed before but are no longer discovered are
// processed with no fresh chunks, so all of their records are deleted.
//
// A failure in any step is recorded against that file in the report and
// the run moves on. Only setup failures (store unreachable, discovery
// failed, another run in progress) abort a run.
//
// # Dry Run
//
// With Options.DryRun the embed and write steps are skipped. The report
// carries the counts a real run would produce and the projected token
// usage, with zero tokens used.
//
// # Watch Mode
//
// Watch performs an initial run and then re-runs after file system
// changes under the source root, coalescing bursts of events.
package indexer
