package embedding

import (
	"context"
)

// Provider turns texts into dense vectors. Implementations return one vector
// per input text, in input order. Vectors need not be normalized.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, *Usage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Name() string
	Close() error
}

// StatsProvider is implemented by providers guarded by a circuit breaker.
type StatsProvider interface {
	GetCircuitBreakerStats() map[string]any
	IsHealthy() bool
}

// Observer receives one callback per provider call.
type Observer interface {
	RecordEmbedding(ctx context.Context, provider string, texts int, usage *Usage, err error, seconds float64)
}

// Usage reports billable input consumed by a provider call when known.
type Usage struct {
	InputTokens int64
}

// ModelInfo describes the configured embedding model for readiness checks.
type ModelInfo struct {
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
