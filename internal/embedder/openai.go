package embedder

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements Embedder using the OpenAI SDK. Retries with
// backoff, including on 429, are handled by the SDK client.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
	cache     *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder. A dimension of zero uses
// the model's native size. baseURL may point at any OpenAI-compatible API.
func NewOpenAIProvider(apiKey, model, baseURL string, dimension int, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(MaxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
		cache:     cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	return generateCached(ctx, o.cache, model, req, func(ctx context.Context, text string) (*Embedding, error) {
		params := openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(model),
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
		}
		if o.dimension > 0 {
			params.Dimensions = openai.Int(int64(o.dimension))
		}

		resp, err := o.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
		}

		vector := make([]float32, len(resp.Data[0].Embedding))
		for i, v := range resp.Data[0].Embedding {
			vector[i] = float32(v)
		}

		return &Embedding{
			Vector:     vector,
			Dimension:  len(vector),
			Provider:   ProviderOpenAI,
			Model:      model,
			TokenCount: int(resp.Usage.TotalTokens),
		}, nil
	})
}

func (o *OpenAIProvider) Dimension() int {
	if o.dimension > 0 {
		return o.dimension
	}
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
