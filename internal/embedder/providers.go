package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dshills/docindex/internal/tokens"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hash"

	// Endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOllamaURL = "http://localhost:11434"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// Environment variables consulted when no key is configured
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a new Jina AI embedder. Empty model and url use
// the defaults.
func NewJinaProvider(apiKey, model, url string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if url == "" {
		url = DefaultJinaURL
	}

	return &JinaProvider{
		apiKey: apiKey,
		model:  model,
		url:    url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = j.model
	}

	return generateCached(ctx, j.cache, model, req, func(ctx context.Context, text string) (*Embedding, error) {
		emb, err := retryWithBackoff(ctx, j.retry, func() (*Embedding, error) {
			return j.callAPI(ctx, text, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		return emb, nil
	})
}

func (j *JinaProvider) callAPI(ctx context.Context, text, model string) (*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": model,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := postJSON(ctx, j.httpClient, j.url, j.apiKey, reqBody, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	vector := apiResp.Data[0].Embedding
	return &Embedding{
		Vector:     vector,
		Dimension:  len(vector),
		Provider:   ProviderJina,
		Model:      model,
		TokenCount: apiResp.Usage.TotalTokens,
	}, nil
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewOllamaProvider creates an embedder targeting the given Ollama instance
func NewOllamaProvider(baseURL, model string, dimension int, cache *Cache) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension <= 0 {
		dimension = OllamaDimension
	}

	return &OllamaProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	return generateCached(ctx, o.cache, model, req, func(ctx context.Context, text string) (*Embedding, error) {
		emb, err := retryWithBackoff(ctx, o.retry, func() (*Embedding, error) {
			return o.callAPI(ctx, text, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		return emb, nil
	})
}

func (o *OllamaProvider) callAPI(ctx context.Context, text, model string) (*Embedding, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"input": []string{text},
	}

	var apiResp struct {
		Embeddings      [][]float32 `json:"embeddings"`
		PromptEvalCount int         `json:"prompt_eval_count"`
	}
	if err := postJSON(ctx, o.httpClient, o.baseURL+"/api/embed", "", reqBody, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	vector := apiResp.Embeddings[0]
	return &Embedding{
		Vector:     vector,
		Dimension:  len(vector),
		Provider:   ProviderOllama,
		Model:      model,
		TokenCount: apiResp.PromptEvalCount,
	}, nil
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// postJSON sends body as JSON and decodes a 200 response into out. Non-200
// responses become a *StatusError.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LocalProvider produces deterministic pseudo-embeddings from the text hash.
// It makes no network calls and is meant for development, CI and dry
// experimentation with a real store.
type LocalProvider struct {
	model     string
	dimension int
	counter   tokens.Counter
	cache     *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(dimension int, counter tokens.Counter, cache *Cache) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	if counter == nil {
		counter = tokens.Heuristic{}
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		counter:   counter,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateCached(ctx, l.cache, l.model, req, func(ctx context.Context, text string) (*Embedding, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vector := make([]float32, l.dimension)
		seed := sha256.Sum256([]byte(text))
		for i := range vector {
			if i > 0 && i%len(seed) == 0 {
				seed = sha256.Sum256(seed[:])
			}
			vector[i] = float32(seed[i%len(seed)])/127.5 - 1
		}

		return &Embedding{
			Vector:     NormalizeVector(vector),
			Dimension:  l.dimension,
			Provider:   ProviderLocal,
			Model:      l.model,
			TokenCount: l.counter.Count(text),
		}, nil
	})
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
