package embedding

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"atsmatch/internal/config"
	"atsmatch/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider embeds texts with the Gemini embedding API
type GeminiProvider struct {
	client         *genai.Client
	config         config.EmbeddingConfig
	circuitBreaker *CircuitBreaker[*genai.EmbedContentResponse]
	retry          retryPolicy
	logger         *errors.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini embedding provider
func NewGeminiProvider(cfg config.EmbeddingConfig, logger *errors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"Gemini API key is required (set ATSMATCH_EMBEDDING_APIKEY or GEMINI_API_KEY)", nil)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed, "Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		circuitBreaker: NewCircuitBreaker[*genai.EmbedContentResponse]("embedding-gemini", cfg.CircuitBreaker, logger),
		retry: retryPolicy{
			provider:   config.ProviderGemini,
			maxRetries: cfg.MaxRetries,
			timeout:    cfg.Timeout,
			baseDelay:  time.Second,
			retryable:  isRetryableGeminiError,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

func (g *GeminiProvider) Name() string { return config.ProviderGemini }

// Embed sends one batched EmbedContent call for all texts
func (g *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, *Usage, error) {
	tracer := otel.Tracer("atsmatch.embedding.gemini")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embedding.provider", config.ProviderGemini),
		attribute.String("embedding.model", g.config.Model),
		attribute.Int("embedding.texts", len(texts)),
	)

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	embedConfig := &genai.EmbedContentConfig{TaskType: g.config.TaskType}
	if g.config.Dimensions > 0 {
		dims := int32(g.config.Dimensions)
		embedConfig.OutputDimensionality = &dims
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.EmbedContentResponse, error) {
		return executeWithRetry(ctx, g.retry, "embed", func(ctx context.Context) (*genai.EmbedContentResponse, error) {
			return g.client.Models.EmbedContent(ctx, g.config.Model, contents, embedConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, wrapProviderError(config.ProviderGemini, err)
	}

	if len(result.Embeddings) != len(texts) {
		err := errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("Gemini returned %d embeddings for %d texts", len(result.Embeddings), len(texts)), nil)
		span.RecordError(err)
		return nil, nil, err
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if emb == nil {
			return nil, nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("Gemini returned an empty embedding at index %d", i), nil)
		}
		vectors[i] = emb.Values
	}

	span.SetAttributes(attribute.Bool("success", true))
	return vectors, nil, nil
}

// GetModelInfo checks that the configured model is reachable
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Provider: config.ProviderGemini, Name: g.config.Model}

	model, err := g.client.Models.Get(ctx, g.config.Model, &genai.GetModelConfig{})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed", "provider", config.ProviderGemini, "model", g.config.Model, "error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return g.circuitBreaker.GetStats()
}

func (g *GeminiProvider) IsHealthy() bool {
	return g.circuitBreaker.IsHealthy()
}

// Close is a no-op; the genai client holds no long-lived connections of its own
func (g *GeminiProvider) Close() error {
	return nil
}

// isRetryableGeminiError retries network failures and transient HTTP statuses
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	if isNetworkError(err) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return isRetryableStatus(genaiErr.Code)
	}

	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
