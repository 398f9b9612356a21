package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/docindex/internal/tokens"
)

// Config holds embedder configuration
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	CacheSize  int

	// Counter is used by the local provider to report token usage
	Counter tokens.Counter
}

// New creates an embedder with explicit configuration. An empty API key
// falls back to the provider's environment variable.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimensions, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cfg.Dimensions, cfg.Counter, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// Identity names the provider and model that produced stored vectors
func Identity(e Embedder) string {
	return e.Provider() + "/" + e.Model()
}
