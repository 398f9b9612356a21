package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/docindex/pkg/types"
)

func chunksOf(contents ...string) []*types.Chunk {
	chunks := make([]*types.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = types.NewChunk("docs/a.md", i, types.RawChunk{Content: c})
		chunks[i].TokenCount = types.ComputeTokenCount(c)
	}
	return chunks
}

func contents(chunks []*types.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestResolveChanges(t *testing.T) {
	h := types.ComputeContentHash

	tests := []struct {
		name      string
		existing  map[string]int64
		fresh     []string
		force     bool
		upsert    []string
		unchanged []string
		orphans   []int64
	}{
		{
			name:   "new file",
			fresh:  []string{"a", "b", "c"},
			upsert: []string{"a", "b", "c"},
		},
		{
			name:      "one chunk edited",
			existing:  map[string]int64{h("a"): 1, h("b"): 2},
			fresh:     []string{"a", "b2"},
			upsert:    []string{"b2"},
			unchanged: []string{"a"},
			orphans:   []int64{2},
		},
		{
			name:      "reordered",
			existing:  map[string]int64{h("a"): 1, h("b"): 2},
			fresh:     []string{"b", "a"},
			unchanged: []string{"b", "a"},
		},
		{
			name:     "file emptied",
			existing: map[string]int64{h("a"): 7, h("b"): 3},
			orphans:  []int64{3, 7},
		},
		{
			name:      "duplicate content kept once",
			existing:  map[string]int64{h("a"): 1},
			fresh:     []string{"a", "a", "b", "b"},
			upsert:    []string{"b"},
			unchanged: []string{"a"},
		},
		{
			name:     "force re-embeds stored chunks without orphaning them",
			existing: map[string]int64{h("a"): 1, h("gone"): 2},
			fresh:    []string{"a", "new"},
			force:    true,
			upsert:   []string{"a", "new"},
			orphans:  []int64{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := ResolveChanges(tt.existing, chunksOf(tt.fresh...), tt.force)

			assert.Equal(t, len(tt.upsert), len(changes.ToUpsert))
			if len(tt.upsert) > 0 {
				assert.Equal(t, tt.upsert, contents(changes.ToUpsert))
			}
			if len(tt.unchanged) > 0 {
				assert.Equal(t, tt.unchanged, contents(changes.Unchanged))
			} else {
				assert.Empty(t, changes.Unchanged)
			}
			assert.Equal(t, tt.orphans, changes.OrphanIDs)

			orphaned := make(map[int64]bool)
			for _, id := range changes.OrphanIDs {
				orphaned[id] = true
			}
			for _, c := range changes.ToUpsert {
				if id, ok := tt.existing[c.ContentHash]; ok {
					assert.False(t, orphaned[id], "hash %s both upserted and orphaned", c.ContentHash)
				}
			}
		})
	}
}

func TestResolveChanges_DoesNotMutateExisting(t *testing.T) {
	existing := map[string]int64{types.ComputeContentHash("a"): 1}
	ResolveChanges(existing, chunksOf("a"), false)
	assert.Len(t, existing, 1)
}

func TestChangeSet_ProjectedTokens(t *testing.T) {
	changes := ResolveChanges(nil, chunksOf("12345678", "1234"), false)
	assert.Equal(t, 3, changes.ProjectedTokens())
	assert.False(t, changes.Empty())
	assert.True(t, (&ChangeSet{}).Empty())
}
