// Package config loads application configuration from file and
// environment, with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph store configuration
	Store StoreConfig `mapstructure:"store"`

	// Vector memory configuration
	Vector VectorConfig `mapstructure:"vector"`

	// LLM configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Chunker configuration
	Chunker ChunkerConfig `mapstructure:"chunker"`

	// Search configuration
	Search SearchConfig `mapstructure:"search"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StoreConfig holds graph store configuration.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, postgres, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// VectorConfig holds vector memory configuration.
type VectorConfig struct {
	Driver           string        `mapstructure:"driver"` // badger, qdrant
	Path             string        `mapstructure:"path"`   // badger path, empty for in-memory
	URL              string        `mapstructure:"url"`    // qdrant base URL
	CollectionPrefix string        `mapstructure:"collection_prefix"`
	Dimensions       int           `mapstructure:"dimensions"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds chat model configuration.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// ChunkerConfig holds text chunking configuration.
type ChunkerConfig struct {
	LinesPerSplit      int `mapstructure:"lines_per_split"`
	TokensPerParagraph int `mapstructure:"tokens_per_paragraph"`
}

// SearchConfig holds retrieval tuning.
type SearchConfig struct {
	Limit        int     `mapstructure:"limit"`
	MinRelevance float64 `mapstructure:"min_relevance"`
	NodeDepth    int     `mapstructure:"node_depth"`
	MaxNodes     int     `mapstructure:"max_nodes"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
// around the LLM provider.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Store defaults
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.uri", "")
	viper.SetDefault("store.username", "")
	viper.SetDefault("store.password", "")
	viper.SetDefault("store.database", "")

	// Vector defaults
	viper.SetDefault("vector.driver", "badger")
	viper.SetDefault("vector.path", "")
	viper.SetDefault("vector.url", "http://localhost:6333")
	viper.SetDefault("vector.collection_prefix", "graphrag")
	viper.SetDefault("vector.dimensions", 1536)
	viper.SetDefault("vector.timeout", 30*time.Second)

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_retries", 3)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.batch_size", 100)

	// Chunker defaults
	viper.SetDefault("chunker.lines_per_split", 100)
	viper.SetDefault("chunker.tokens_per_paragraph", 500)

	// Search defaults
	viper.SetDefault("search.limit", 10)
	viper.SetDefault("search.min_relevance", 0.6)
	viper.SetDefault("search.node_depth", 2)
	viper.SetDefault("search.max_nodes", 50)
	viper.SetDefault("search.max_tokens", 8000)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = apiKey
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedding.BaseURL == "" {
			config.Embedding.BaseURL = baseURL
		}
	}

	// Graph store credentials
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		config.Store.Driver = driver
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Store.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Store.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Store.Password = pass
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Store.URI = dsn
	}

	// Vector memory
	if url := os.Getenv("QDRANT_URL"); url != "" {
		config.Vector.Driver = "qdrant"
		config.Vector.URL = url
	}
	if path := os.Getenv("BADGER_PATH"); path != "" {
		config.Vector.Path = path
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
}
