package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency bounds in-flight provider calls when no limit is
// configured
const DefaultMaxConcurrency = 10

// Result is the outcome of embedding one text. Exactly one of Embedding
// and Err is set.
type Result struct {
	Embedding *Embedding
	Err       error
}

// Scheduler drives an Embedder with a bounded number of concurrent calls
type Scheduler struct {
	embedder       Embedder
	maxConcurrency int
}

// NewScheduler creates a scheduler. A non-positive limit uses
// DefaultMaxConcurrency.
func NewScheduler(e Embedder, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Scheduler{
		embedder:       e,
		maxConcurrency: maxConcurrency,
	}
}

// MaxConcurrency returns the in-flight call limit
func (s *Scheduler) MaxConcurrency() int {
	return s.maxConcurrency
}

// Embed embeds every text and returns one result per input, in input order.
// At most MaxConcurrency provider calls are outstanding at any instant;
// further texts wait for a slot. A failed text does not cancel the others.
// If ctx is done before a text gets a slot, that text and every text after
// it fail with the context error.
func (s *Scheduler) Embed(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))

	var wg sync.WaitGroup
	for i, text := range texts {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(texts); j++ {
				results[j].Err = err
			}
			break
		}

		wg.Go(func() {
			defer sem.Release(1)

			emb, err := s.embedder.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
			if err == nil && emb == nil {
				err = fmt.Errorf("%w: no embedding returned", ErrProviderFailed)
			}
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			results[i] = Result{Embedding: emb}
		})
	}
	wg.Wait()

	return results
}

// TotalTokens sums the token counts of successful results
func TotalTokens(results []Result) int {
	total := 0
	for _, r := range results {
		if r.Err == nil && r.Embedding != nil {
			total += r.Embedding.TokenCount
		}
	}
	return total
}

// Err joins the errors of failed results, or returns nil if every text was
// embedded
func Err(results []Result) error {
	var errs []error
	for i, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("text %d: %w", i, r.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d embeddings failed: %w", len(errs), len(results), errors.Join(errs...))
}
