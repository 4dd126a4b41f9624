package embedding

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"atsmatch/internal/config"
	"atsmatch/internal/errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIProvider embeds texts through the OpenAI embeddings API or any
// OpenAI-compatible server (Ollama, vLLM, LocalAI) reached via BaseURL.
type OpenAIProvider struct {
	client         *openai.Client
	config         config.EmbeddingConfig
	circuitBreaker *CircuitBreaker[*openai.CreateEmbeddingResponse]
	retry          retryPolicy
	logger         *errors.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI-compatible embedding provider
func NewOpenAIProvider(cfg config.EmbeddingConfig, logger *errors.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"OpenAI API key is required unless embedding.baseURL points at a compatible server", nil)
	}

	// retries are owned by executeWithRetry so the breaker sees one outcome per call
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client:         &client,
		config:         cfg,
		circuitBreaker: NewCircuitBreaker[*openai.CreateEmbeddingResponse]("embedding-openai", cfg.CircuitBreaker, logger),
		retry: retryPolicy{
			provider:   config.ProviderOpenAI,
			maxRetries: cfg.MaxRetries,
			timeout:    cfg.Timeout,
			baseDelay:  time.Second,
			retryable:  isRetryableOpenAIError,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

func (o *OpenAIProvider) Name() string { return config.ProviderOpenAI }

// Embed sends all texts in a single embeddings request
func (o *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, *Usage, error) {
	tracer := otel.Tracer("atsmatch.embedding.openai")
	ctx, span := tracer.Start(ctx, "openai.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embedding.provider", config.ProviderOpenAI),
		attribute.String("embedding.model", o.config.Model),
		attribute.Int("embedding.texts", len(texts)),
	)

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.config.Model),
	}
	if o.config.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.config.Dimensions))
	}

	resp, err := o.circuitBreaker.Execute(func() (*openai.CreateEmbeddingResponse, error) {
		return executeWithRetry(ctx, o.retry, "embed", func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
			return o.client.Embeddings.New(ctx, params)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, wrapProviderError(config.ProviderOpenAI, err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding missing for input %d", i), nil)
		}
	}

	usage := &Usage{InputTokens: resp.Usage.PromptTokens}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int64("embedding.tokens.input", usage.InputTokens),
	)
	return vectors, usage, nil
}

// GetModelInfo looks the model up through the models endpoint
func (o *OpenAIProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Provider: config.ProviderOpenAI, Name: o.config.Model}

	model, err := o.client.Models.Get(ctx, o.config.Model)
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		o.logger.Warn("Model availability check failed", "provider", config.ProviderOpenAI, "model", o.config.Model, "error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.ID
	info.Version = model.OwnedBy
	return info
}

func (o *OpenAIProvider) GetCircuitBreakerStats() map[string]any {
	return o.circuitBreaker.GetStats()
}

func (o *OpenAIProvider) IsHealthy() bool {
	return o.circuitBreaker.IsHealthy()
}

func (o *OpenAIProvider) Close() error {
	return nil
}

func isRetryableOpenAIError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.StatusCode)
	}
	return isNetworkError(err)
}
