package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// KB configuration
	KB KBConfig `mapstructure:"kb"`

	// Session configuration
	Session SessionConfig `mapstructure:"session"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// KBConfig holds knowledge base configuration
type KBConfig struct {
	// Dir is the root directory of the ingestion snapshot.
	Dir string `mapstructure:"dir"`
}

// SessionConfig holds conversation session configuration
type SessionConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
	// PersistPath, when set, enables durable session storage at this path.
	PersistPath string `mapstructure:"persist_path"`
}

// NLPConfig holds NLP configuration
type NLPConfig struct {
	// Models is a map of model configurations (e.g. "default", "embedding")
	Models map[string]NLPModelConfig `mapstructure:"models"`
}

// NLPModelConfig holds configuration for a specific model
type NLPModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai or openai-compatible
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetrievalConfig holds retrieval configuration
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
	// CacheSize is the number of retrieval results kept in the LRU cache.
	CacheSize int `mapstructure:"cache_size"`
	// CacheTTL is the cache entry lifetime in seconds.
	CacheTTL int `mapstructure:"cache_ttl"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// KB defaults
	viper.SetDefault("kb.dir", "./kb")

	// Session defaults
	viper.SetDefault("session.max_turns", 10)

	// NLP defaults
	viper.SetDefault("nlp.models.default.provider", "openai")
	viper.SetDefault("nlp.models.default.model", "gpt-4o-mini")
	viper.SetDefault("nlp.models.default.temperature", 0.2)
	viper.SetDefault("nlp.models.default.max_tokens", 1024)

	viper.SetDefault("nlp.models.embedding.provider", "openai")
	viper.SetDefault("nlp.models.embedding.model", "text-embedding-3-small")

	// Retrieval defaults
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.cache_size", 256)
	viper.SetDefault("retrieval.cache_ttl", 300)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.narratex/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if config.NLP.Models == nil {
		config.NLP.Models = make(map[string]NLPModelConfig)
	}

	getModel := func(name string) NLPModelConfig {
		if c, ok := config.NLP.Models[name]; ok {
			return c
		}
		return NLPModelConfig{}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		defaultModel := getModel("default")
		defaultModel.APIKey = apiKey
		config.NLP.Models["default"] = defaultModel

		embeddingModel := getModel("embedding")
		embeddingModel.APIKey = apiKey
		config.NLP.Models["embedding"] = embeddingModel
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		defaultModel := getModel("default")
		defaultModel.BaseURL = baseURL
		config.NLP.Models["default"] = defaultModel
	}

	// KB settings
	if dir := os.Getenv("NARRATEX_KB_DIR"); dir != "" {
		config.KB.Dir = dir
	}

	// Session settings
	if path := os.Getenv("NARRATEX_SESSION_PATH"); path != "" {
		config.Session.PersistPath = path
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
