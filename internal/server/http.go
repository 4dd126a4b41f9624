package server

import (
	"context"
	"time"

	"atsmatch/internal/config"
	"atsmatch/internal/embedding"
	appErrors "atsmatch/internal/errors"
	"atsmatch/internal/matcher"
)

// MatchTextRequest is the body of POST /match/text. Pointers distinguish a
// missing field from an empty string.
type MatchTextRequest struct {
	ResumeText     *string `json:"resume_text"`
	JobDescription *string `json:"job_description"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EmbeddingBackend is the embedding service as seen by the readiness probe
type EmbeddingBackend interface {
	ProviderName() string
	GetModelInfo(ctx context.Context) *embedding.ModelInfo
	Stats() map[string]any
	IsHealthy() bool
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config

	Matcher    *matcher.Matcher
	Embeddings EmbeddingBackend
	Catalog    *matcher.CatalogStore

	// API authentication
	APIKeys map[string]bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MaxRequestSize int64
	MaxTopK        int

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Logger *appErrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host            string
	Port            string
	Version         string
	APIKeys         []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
	MaxTopK         int
	RateLimit       *config.RateLimitConfig
}

// Dependencies are the long-lived services shared by all requests
type Dependencies struct {
	Matcher    *matcher.Matcher
	Embeddings EmbeddingBackend
	Catalog    *matcher.CatalogStore
}

// NewServer creates a new Server instance
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *appErrors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, cfg.RateLimit.Window, logger)
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	return &Server{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Version:         cfg.Version,
		AppConfig:       appCfg,
		Matcher:         deps.Matcher,
		Embeddings:      deps.Embeddings,
		Catalog:         deps.Catalog,
		APIKeys:         apiKeyMap,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: shutdownTimeout,
		MaxRequestSize:  cfg.MaxRequestSize,
		MaxTopK:         cfg.MaxTopK,
		RateLimit:       cfg.RateLimit,
		RateLimiter:     rateLimiter,
		Logger:          logger,
	}
}
