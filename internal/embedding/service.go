package embedding

import (
	"context"
	"fmt"
	"time"

	"atsmatch/internal/config"
	"atsmatch/internal/errors"
)

// Service is the process-wide embedding handle. It is created once at
// startup and shared read-only by every request.
type Service struct {
	provider  Provider
	batchSize int
	observer  Observer
	logger    *errors.Logger
}

// NewService creates the provider selected by cfg.Provider
func NewService(cfg config.EmbeddingConfig, logger *errors.Logger) (*Service, error) {
	logger.Debug("Initializing embedding service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"batch_size", cfg.BatchSize,
		"circuit_breaker", cfg.CircuitBreaker.Enabled)

	var provider Provider
	var err error

	switch cfg.Provider {
	case config.ProviderGemini:
		provider, err = NewGeminiProvider(cfg, logger)
	case config.ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg, logger)
	case config.ProviderHash:
		provider = NewHashProvider(cfg)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported embedding provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return NewServiceWithProvider(provider, cfg.BatchSize, logger), nil
}

// NewServiceWithProvider wraps an already constructed provider
func NewServiceWithProvider(provider Provider, batchSize int, logger *errors.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{provider: provider, batchSize: batchSize, logger: logger}
}

// SetObserver installs a metrics callback. Call before serving requests.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Embed returns one unit-length vector per text, in input order. Large
// inputs are split into provider batches.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	started := time.Now()
	vectors, usage, err := s.provider.Embed(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	if s.observer != nil {
		s.observer.RecordEmbedding(ctx, s.provider.Name(), len(texts), usage, err, time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}

	for _, v := range vectors {
		Normalize(v)
	}
	return vectors, nil
}

// ProviderName returns the active provider identifier
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetModelInfo returns information about the embedding model for readiness checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.provider.GetModelInfo(ctx)
}

// Stats returns circuit breaker state when the provider has one
func (s *Service) Stats() map[string]any {
	if sp, ok := s.provider.(StatsProvider); ok {
		return sp.GetCircuitBreakerStats()
	}
	return map[string]any{"enabled": false}
}

// IsHealthy is false while the provider's circuit breaker is not closed
func (s *Service) IsHealthy() bool {
	if sp, ok := s.provider.(StatsProvider); ok {
		return sp.IsHealthy()
	}
	return true
}

func (s *Service) Close() error {
	return s.provider.Close()
}
