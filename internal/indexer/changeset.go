package indexer

import (
	"context"
	"maps"
	"slices"

	"github.com/dshills/docindex/pkg/types"
)

// ChangeSet partitions a file's fresh chunks against what the store holds
// for that file. No hash appears in both ToUpsert and the orphans.
type ChangeSet struct {
	ToUpsert  []*types.Chunk // New hashes, or every hash when forced
	Unchanged []*types.Chunk // Hashes already stored
	OrphanIDs []int64        // Stored records whose hash is no longer produced
}

// ProjectedTokens sums the token counts of the chunks that need embedding
func (c *ChangeSet) ProjectedTokens() int {
	total := 0
	for _, chunk := range c.ToUpsert {
		total += chunk.TokenCount
	}
	return total
}

// Empty reports whether applying the change set would touch the store
func (c *ChangeSet) Empty() bool {
	return len(c.ToUpsert) == 0 && len(c.OrphanIDs) == 0
}

// ResolveChanges diffs fresh chunks against existing (content hash -> record
// ID). Only hash membership matters: reordering chunks yields no changes.
// A hash produced twice within one file is kept once, since the store holds
// a single record per (file, hash). With force, stored hashes are upserted
// again instead of being skipped; they are never orphaned.
func ResolveChanges(existing map[string]int64, fresh []*types.Chunk, force bool) *ChangeSet {
	remaining := maps.Clone(existing)
	if remaining == nil {
		remaining = make(map[string]int64)
	}

	changes := &ChangeSet{}
	seen := make(map[string]struct{}, len(fresh))
	for _, chunk := range fresh {
		if _, dup := seen[chunk.ContentHash]; dup {
			continue
		}
		seen[chunk.ContentHash] = struct{}{}

		if _, stored := remaining[chunk.ContentHash]; stored {
			delete(remaining, chunk.ContentHash)
			if !force {
				changes.Unchanged = append(changes.Unchanged, chunk)
				continue
			}
		}
		changes.ToUpsert = append(changes.ToUpsert, chunk)
	}

	changes.OrphanIDs = slices.Sorted(maps.Values(remaining))
	return changes
}

// resolve loads the stored hashes for filePath and diffs them against fresh
func (idx *Indexer) resolve(ctx context.Context, filePath string, fresh []*types.Chunk, force bool) (*ChangeSet, error) {
	existing, err := idx.store.ListChunkHashes(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return ResolveChanges(existing, fresh, force), nil
}
