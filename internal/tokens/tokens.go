// Package tokens counts tokens the way embedding models bill them.
package tokens

import (
	"fmt"
	"log/slog"

	"github.com/dshills/docindex/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the encoding used by OpenAI's text-embedding-3 models
const DefaultEncoding = "cl100k_base"

// Counter counts the tokens in a piece of text
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens with a BPE encoding
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Heuristic approximates token counts at four characters per token
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	return types.ComputeTokenCount(text)
}

// New returns a tiktoken counter for encoding, falling back to the
// heuristic when the encoding is unavailable (it is fetched on first use).
func New(encoding string, logger *slog.Logger) Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if encoding == "heuristic" {
		return Heuristic{}
	}
	tk, err := NewTiktoken(encoding)
	if err != nil {
		if logger != nil {
			logger.Warn("tokens: falling back to heuristic counter",
				slog.String("encoding", encoding),
				slog.String("error", err.Error()))
		}
		return Heuristic{}
	}
	return tk
}
