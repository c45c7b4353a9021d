package config_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docchat/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "uploads", cfg.Uploads.Dir)
	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "gpt-4.1-mini", cfg.Generation.Model)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9001
splitter:
  chunk_size: 500
  chunk_overlap: 50
vectorstore:
  provider: chromem
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Splitter.ChunkSize)
	assert.Equal(t, 50, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	// Unset fields still get defaults.
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600))

	t.Setenv("SERVER_PORT", "9002")
	t.Setenv("SPLITTER_CHUNK_SIZE", "800")
	t.Setenv("EMBEDDINGS_BASE_URL", "http://localhost:8080/v1")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, 800, cfg.Splitter.ChunkSize)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Embeddings.BaseURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero port", func(c *config.Config) { c.Server.Port = 0 }},
		{"port too large", func(c *config.Config) { c.Server.Port = 70000 }},
		{"negative shutdown", func(c *config.Config) { c.Server.ShutdownTimeout = -time.Second }},
		{"empty uploads dir", func(c *config.Config) { c.Uploads.Dir = "" }},
		{"zero chunk size", func(c *config.Config) { c.Splitter.ChunkSize = -5 }},
		{"overlap >= size", func(c *config.Config) { c.Splitter.ChunkOverlap = c.Splitter.ChunkSize }},
		{"negative overlap", func(c *config.Config) { c.Splitter.ChunkOverlap = -1 }},
		{"zero top_k", func(c *config.Config) { c.Retrieval.TopK = -1 }},
		{"empty embeddings url", func(c *config.Config) { c.Embeddings.BaseURL = "" }},
		{"empty generation model", func(c *config.Config) { c.Generation.Model = "" }},
		{"bad provider", func(c *config.Config) { c.VectorStore.Provider = "pinecone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := config.Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(data))

	var out config.Secret
	require.NoError(t, json.Unmarshal([]byte(`"sk-raw"`), &out))
	assert.Equal(t, "sk-raw", out.Value())

	var empty config.Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
