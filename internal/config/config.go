// Package config provides configuration loading for docchat.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. Precedence (highest to lowest):
//
//  1. Environment variables (SERVER_PORT, SPLITTER_CHUNK_SIZE, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete docchat configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Uploads     UploadsConfig     `koanf:"uploads"`
	Splitter    SplitterConfig    `koanf:"splitter"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// UploadsConfig holds uploaded-file storage configuration.
type UploadsConfig struct {
	Dir string `koanf:"dir"`
}

// SplitterConfig holds text splitting parameters.
type SplitterConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// RetrievalConfig holds retrieval parameters.
type RetrievalConfig struct {
	// TopK is the default number of chunks retrieved per question.
	TopK int `koanf:"top_k"`
}

// EmbeddingsConfig holds the embedding provider endpoint configuration.
// The API key itself arrives per request and is passed through opaquely;
// APIKey is an optional server-side default.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// GenerationConfig holds the chat completion endpoint configuration.
type GenerationConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig selects the vector index backend.
type VectorStoreConfig struct {
	// Provider is "memory" (default) or "chromem".
	Provider string `koanf:"provider"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 1000
	}
	if cfg.Splitter.ChunkOverlap == 0 {
		cfg.Splitter.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4.1-mini"
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "memory"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Uploads.Dir == "" {
		return errors.New("uploads directory required")
	}
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("splitter chunk size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter chunk overlap must be in [0, %d), got %d",
			c.Splitter.ChunkSize, c.Splitter.ChunkOverlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Embeddings.BaseURL == "" {
		return errors.New("embeddings base URL required")
	}
	if c.Embeddings.Model == "" {
		return errors.New("embeddings model required")
	}
	if c.Generation.BaseURL == "" {
		return errors.New("generation base URL required")
	}
	if c.Generation.Model == "" {
		return errors.New("generation model required")
	}
	switch c.VectorStore.Provider {
	case "memory", "chromem":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: memory, chromem)", c.VectorStore.Provider)
	}
	return nil
}
