package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func newTestJina(t *testing.T, url string, cache *Cache) *JinaProvider {
	t.Helper()
	p, err := NewJinaProvider("test-key", "", url, cache)
	require.NoError(t, err)
	p.retry = fastRetry()
	return p
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful embedding reports usage", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"hello"}, body.Input)
			assert.Equal(t, DefaultJinaModel, body.Model)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"model": DefaultJinaModel,
				"data": []map[string]interface{}{
					{"index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
				},
				"usage": map[string]interface{}{"total_tokens": 7},
			})
		}))
		defer server.Close()

		p := newTestJina(t, server.URL, NewCache(10))
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
		assert.Equal(t, 3, emb.Dimension)
		assert.Equal(t, 7, emb.TokenCount)
		assert.Equal(t, ProviderJina, emb.Provider)

		// Second call is served from cache
		again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, emb.Vector, again.Vector)
		assert.Zero(t, again.TokenCount)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries rate limiting then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("slow down"))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data":  []map[string]interface{}{{"index": 0, "embedding": []float32{1}}},
				"usage": map[string]interface{}{"total_tokens": 1},
			})
		}))
		defer server.Close()

		p := newTestJina(t, server.URL, nil)
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, 1, emb.TokenCount)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		p := newTestJina(t, server.URL, nil)
		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusTooManyRequests, se.Code)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		p := newTestJina(t, server.URL, nil)
		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := NewJinaProvider("", "", "", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body.Model)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings":        [][]float32{{0.5, 0.5}},
			"prompt_eval_count": 4,
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL+"/", "", 0, nil)
	require.NoError(t, err)
	p.retry = fastRetry()

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "some text"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, emb.Vector)
	assert.Equal(t, 4, emb.TokenCount)
	assert.Equal(t, ProviderOllama, p.Provider())
	assert.Equal(t, OllamaDimension, p.Dimension())
}

func TestOllamaProvider_CachePerModel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Model string `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		vector := []float32{1, 0}
		if body.Model == "other-model" {
			vector = []float32{0, 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": [][]float32{vector},
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "", 0, NewCache(10))
	require.NoError(t, err)
	p.retry = fastRetry()
	ctx := context.Background()

	first, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, first.Vector)

	other, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text", Model: "other-model"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, other.Vector)
	assert.Equal(t, "other-model", other.Model)
	assert.EqualValues(t, 2, calls.Load())

	explicit, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text", Model: DefaultOllamaModel})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, explicit.Vector)
	assert.EqualValues(t, 2, calls.Load(), "default model served from cache")
	assert.Equal(t, ComputeHash("same text"), explicit.Hash)
}

func TestOpenAIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 9, "total_tokens": 9}
		}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", "", server.URL+"/v1/", 0, nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, emb.Vector)
	assert.Equal(t, 9, emb.TokenCount)
	assert.Equal(t, DefaultOpenAIModel, emb.Model)
	assert.Equal(t, OpenAIDimension, p.Dimension())
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("success first try", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(ctx, fastRetry(), func() (string, error) {
			calls++
			if calls < 2 {
				return "", &StatusError{Code: http.StatusServiceUnavailable}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			calls++
			return 0, &StatusError{Code: http.StatusBadRequest}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, fastRetry(), func() (int, error) {
			return 0, errors.New("network down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStatusErrorRetryable(t *testing.T) {
	assert.True(t, (&StatusError{Code: 429}).Retryable())
	assert.True(t, (&StatusError{Code: 502}).Retryable())
	assert.False(t, (&StatusError{Code: 400}).Retryable())
	assert.False(t, (&StatusError{Code: 404}).Retryable())
}
