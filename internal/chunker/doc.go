// Package chunker turns source documents into fingerprinted chunks.
//
// The chunker wraps a splitter.Splitter, which decides where one section
// ends and the next begins. For every section it produces a types.Chunk
// with:
//   - ContentHash: hex SHA-256 of the section text
//   - TokenCount: tokens as counted by the configured tokens.Counter
//   - Metadata: the splitter's metadata plus file_path and language
//
// # Basic Usage
//
//	c := chunker.New(splitter.NewMarkdown(512, counter), counter)
//	chunks, err := c.ChunkFile("docs/guide.md", content)
//	if err != nil {
//	    return err
//	}
//
// Chunk order follows the document. Change detection only looks at the set
// of hashes, so order matters for reporting alone.
package chunker
