// Package splitter turns document text into ordered, semantically coherent
// sections. Each section carries a breadcrumb naming its place in the
// document and an open metadata map.
package splitter

import (
	"errors"

	"github.com/dshills/docindex/pkg/types"
)

var (
	ErrInvalidUTF8        = errors.New("content is not valid UTF-8")
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")
)

// BreadcrumbSeparator joins the parts of a breadcrumb
const BreadcrumbSeparator = " > "

// Splitter splits a document into raw chunks
type Splitter interface {
	Split(content, filePath string) ([]types.RawChunk, error)
}
