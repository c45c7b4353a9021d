// Package embeddings generates vector embeddings via an OpenAI-compatible
// API using langchaingo.
//
// The service is configured once with a base URL and model; callers obtain a
// Client per request so that user-supplied API keys can override the
// configured default.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrMissingAPIKey indicates no API key was supplied and none is
	// configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrProvider indicates a failure reported by the embedding provider.
	ErrProvider = errors.New("embedding provider error")
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL of the OpenAI-compatible embedding API.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// APIKey is the default API key, used when a request supplies none.
	APIKey string

	// RequestsPerSecond caps the rate of provider calls. Zero disables
	// rate limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Defaults to 1 when rate
	// limiting is enabled.
	Burst int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL required")
	}
	if c.Model == "" {
		return errors.New("model required")
	}
	return nil
}

// Embedder generates embeddings for documents and queries.
type Embedder interface {
	// EmbedDocuments embeds a batch of texts, returning one vector per
	// input in the same order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service creates per-request embedding clients sharing a rate limiter and
// metrics.
type Service struct {
	config  Config
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config, logger *zap.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Service{
		config:  config,
		limiter: limiter,
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

// Model returns the configured embedding model name.
func (s *Service) Model() string {
	return s.config.Model
}

// Client returns an Embedder bound to the given API key. An empty key falls
// back to the configured default; if neither is set, ErrMissingAPIKey is
// returned.
func (s *Service) Client(apiKey string) (Embedder, error) {
	if apiKey == "" {
		apiKey = s.config.APIKey
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	llm, err := openai.New(
		openai.WithBaseURL(s.config.BaseURL),
		openai.WithEmbeddingModel(s.config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &client{service: s, embedder: embedder}, nil
}

type client struct {
	service  *Service
	embedder *lcembeddings.EmbedderImpl
}

// EmbedDocuments embeds a batch of texts in a single provider request.
func (c *client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrEmptyInput, i)
		}
	}

	if err := c.service.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	c.service.metrics.RecordGeneration(ctx, c.service.config.Model, "batch_embed", time.Since(start), len(texts), err)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding documents: %v", ErrProvider, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrProvider, len(texts), len(vectors))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrEmptyInput)
	}

	if err := c.service.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vector, err := c.embedder.EmbedQuery(ctx, text)
	c.service.metrics.RecordGeneration(ctx, c.service.config.Model, "embed", time.Since(start), 1, err)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrProvider, err)
	}
	return vector, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
