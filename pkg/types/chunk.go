package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"maps"
)

// RawChunk is a section of a document as produced by a splitter, before
// it has been fingerprinted.
type RawChunk struct {
	Breadcrumb string
	Content    string
	Metadata   map[string]any
}

// Chunk represents a fingerprinted section of a source document ready for
// change detection and embedding
type Chunk struct {
	// Location
	FilePath string
	Ordinal  int // Position within the file, for reporting only

	// Content
	Breadcrumb  string
	Content     string
	ContentHash string // Hex SHA-256 of Content
	TokenCount  int

	// Metadata is an open key-value bag produced by the splitter
	Metadata map[string]any
}

// ComputeContentHash returns the lowercase hex SHA-256 digest of content.
// The digest depends only on the bytes of content, never on the file or
// the position the content was found at.
func ComputeContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ComputeTokenCount estimates the number of tokens in text
// Uses a simple heuristic: characters / 4
func ComputeTokenCount(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// NewChunk builds a fingerprinted chunk from a splitter result
func NewChunk(filePath string, ordinal int, raw RawChunk) *Chunk {
	c := &Chunk{
		FilePath:   filePath,
		Ordinal:    ordinal,
		Breadcrumb: raw.Breadcrumb,
		Content:    raw.Content,
		Metadata:   maps.Clone(raw.Metadata),
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.ComputeContentHash()
	return c
}

// ComputeContentHash sets ContentHash from Content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = ComputeContentHash(c.Content)
}

// Validate checks that the chunk can be persisted
func (c *Chunk) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.ContentHash == "" {
		return errors.New("content hash must be computed")
	}
	if c.ContentHash != ComputeContentHash(c.Content) {
		return ErrHashMismatch
	}
	return nil
}
