package config

import (
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "ATSMATCH"

// Supported embedding providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured)
// 2. Config file values
// 3. Environment variables (ATSMATCH_EMBEDDING_APIKEY, etc.)
// 4. Default values
type Config struct {
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Matching      MatchingConfig      `mapstructure:"matching"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// EmbeddingConfig selects and tunes the sentence-embedding provider.
type EmbeddingConfig struct {
	Provider       string               `mapstructure:"provider"`
	Model          string               `mapstructure:"model"`
	APIKey         string               `mapstructure:"apiKey"`
	BaseURL        string               `mapstructure:"baseURL"` // OpenAI-compatible endpoint, e.g. Ollama
	Timeout        time.Duration        `mapstructure:"timeout"`
	MaxRetries     int                  `mapstructure:"maxRetries"`
	Dimensions     int                  `mapstructure:"dimensions"` // 0 keeps the model default
	BatchSize      int                  `mapstructure:"batchSize"`
	TaskType       string               `mapstructure:"taskType"` // Gemini only
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Open state duration before half-open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// MatchingConfig holds scoring pipeline knobs exposed to operators.
type MatchingConfig struct {
	DefaultMode      string `mapstructure:"defaultMode"`
	TopK             int    `mapstructure:"topK"`
	MaxTopK          int    `mapstructure:"maxTopK"`
	SuggestionLimit  int    `mapstructure:"suggestionLimit"`
	SuggestionsFile  string `mapstructure:"suggestionsFile"`
	WatchSuggestions bool   `mapstructure:"watchSuggestions"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`

	// API authentication, disabled while empty
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	ByIP           bool          `mapstructure:"byIP"`
	ByAPIKey       bool          `mapstructure:"byAPIKey"`
	Window         time.Duration `mapstructure:"window"` // idle limiter eviction window
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"serviceName"`
	ServiceVersion  string            `mapstructure:"serviceVersion"`
	ServiceInstance string            `mapstructure:"serviceInstance"`
	ConsoleOutput   bool              `mapstructure:"consoleOutput"`
	SampleRate      float64           `mapstructure:"sampleRate"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Console         ConsoleConfig     `mapstructure:"console"`
	Prometheus      PrometheusConfig  `mapstructure:"prometheus"`
	OTLP            OTLPConfig        `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig `mapstructure:"healthCheck"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig bounds the readiness probe against the embedding provider.
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from defaults, an optional config file and the environment
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/atsmatch/")
	v.AddConfigPath("$HOME/.atsmatch")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Config file search paths: /etc/atsmatch/, $HOME/.atsmatch, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate validates the configuration. Provider credentials are checked when
// the embedding service is created so that commands like version work without them.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderHash:
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}

	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("embedding timeout must be positive")
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding maxRetries cannot be negative")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batchSize must be positive")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding dimensions cannot be negative")
	}
	if cb := c.Embedding.CircuitBreaker; cb.Enabled && (cb.FailureThreshold <= 0 || cb.FailureThreshold > 1) {
		return fmt.Errorf("circuit breaker failureThreshold must be in (0, 1], got %v", cb.FailureThreshold)
	}

	if c.Matching.TopK <= 0 {
		return fmt.Errorf("matching topK must be positive")
	}
	if c.Matching.MaxTopK < c.Matching.TopK {
		return fmt.Errorf("matching maxTopK (%d) must be at least topK (%d)", c.Matching.MaxTopK, c.Matching.TopK)
	}
	if c.Matching.SuggestionLimit <= 0 {
		return fmt.Errorf("matching suggestionLimit must be positive")
	}
	if c.Matching.WatchSuggestions && c.Matching.SuggestionsFile == "" {
		return fmt.Errorf("matching watchSuggestions requires suggestionsFile")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	if c.App.MaxFileSize <= 0 {
		return fmt.Errorf("app maxFileSize must be positive")
	}
	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	return nil
}
