package chunker

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/docindex/internal/splitter"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
	"github.com/go-enry/go-enry/v2"
)

// Chunker adapts a splitter's output into fingerprinted chunks
type Chunker struct {
	splitter splitter.Splitter
	counter  tokens.Counter
}

// New creates a chunker around the given splitter. A nil counter uses the
// character heuristic.
func New(s splitter.Splitter, counter tokens.Counter) *Chunker {
	if counter == nil {
		counter = tokens.Heuristic{}
	}
	return &Chunker{
		splitter: s,
		counter:  counter,
	}
}

// ChunkFile splits a file's content into ordered chunks, each tagged with
// its content hash and token count. filePath is relative to the source root.
func (c *Chunker) ChunkFile(filePath string, content []byte) ([]*types.Chunk, error) {
	raws, err := c.splitter.Split(string(content), filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", filePath, err)
	}

	language := enry.GetLanguage(path.Base(filePath), content)

	chunks := make([]*types.Chunk, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw.Content) == "" {
			continue
		}

		chunk := types.NewChunk(filePath, len(chunks), raw)
		chunk.TokenCount = c.counter.Count(chunk.Content)
		chunk.Metadata["file_path"] = filePath
		if language != "" {
			chunk.Metadata["language"] = language
		}
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("invalid chunk %d of %s: %w", chunk.Ordinal, filePath, err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
