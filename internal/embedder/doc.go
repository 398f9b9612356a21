// Package embedder generates vector embeddings for document chunks.
//
// Four providers implement the Embedder interface:
//   - openai: OpenAI (or any compatible API) through the official SDK
//   - jina: Jina AI embeddings API
//   - ollama: a local Ollama server's /api/embed endpoint
//   - local: deterministic hash-based vectors, no network
//
// Every Embedding reports the tokens the provider billed for it, which the
// indexer sums into the run's token and cost totals.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOpenAI,
//	    Model:     "text-embedding-3-small",
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "## Install\n\nRun the installer.",
//	})
//
// # Bounded Concurrency
//
// Scheduler fans a slice of texts out to an Embedder while keeping at most
// MaxConcurrency calls in flight:
//
//	sched := embedder.NewScheduler(emb, 10)
//	results := sched.Embed(ctx, texts)
//	if err := embedder.Err(results); err != nil {
//	    // one or more texts failed; the others still completed
//	}
//	tokens := embedder.TotalTokens(results)
//
// Results line up with the input slice, so callers zip them back to their
// chunks by index.
//
// # Caching
//
// Providers share an LRU cache keyed by the SHA-256 of the text. A cache hit
// returns a copy of the stored vector with a zero TokenCount.
//
// # Error Handling
//
// HTTP providers retry rate limiting (429) and server errors with
// exponential backoff:
//
//	MaxRetries:        3
//	InitialBackoffMs:  100
//	MaxBackoffMs:      5000
//	BackoffMultiplier: 2.0
//
// The OpenAI provider relies on the SDK's own retry with the same attempt
// limit. Once retries are exhausted the error wraps ErrProviderFailed.
// Other client errors fail immediately.
package embedder
