// Package generation streams chat completions from an OpenAI-compatible API
// using langchaingo.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyMessages indicates no messages were supplied.
	ErrEmptyMessages = errors.New("empty messages")

	// ErrMissingAPIKey indicates no API key was supplied and none is
	// configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrProvider indicates a failure reported by the generation provider.
	ErrProvider = errors.New("generation provider error")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Config holds configuration for the generation service.
type Config struct {
	// BaseURL is the base URL of the OpenAI-compatible chat API.
	BaseURL string

	// Model is the default chat model, used when a request supplies none.
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

// Streamer streams a chat completion, invoking onFragment for each piece of
// generated text as it arrives.
type Streamer interface {
	Stream(ctx context.Context, model string, messages []Message, onFragment func(ctx context.Context, fragment string) error) error
}

// Service creates per-request generation clients sharing a rate limiter.
type Service struct {
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewService creates a new generation service with the given configuration.
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
		logger:  logger,
	}, nil
}

// Model returns the configured default chat model.
func (s *Service) Model() string {
	return s.config.Model
}

// Client returns a Streamer bound to the given API key. An empty key falls
// back to the configured default; if neither is set, ErrMissingAPIKey is
// returned.
func (s *Service) Client(apiKey string) (Streamer, error) {
	if apiKey == "" {
		apiKey = s.config.APIKey
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	llm, err := openai.New(
		openai.WithBaseURL(s.config.BaseURL),
		openai.WithModel(s.config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &client{service: s, llm: llm}, nil
}

type client struct {
	service *Service
	llm     *openai.LLM
}

// Stream sends the messages to the model and forwards each streamed text
// fragment to onFragment. An empty model selects the configured default.
// Returning an error from onFragment aborts the stream.
func (c *client) Stream(ctx context.Context, model string, messages []Message, onFragment func(ctx context.Context, fragment string) error) error {
	if len(messages) == 0 {
		return ErrEmptyMessages
	}
	if model == "" {
		model = c.service.config.Model
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	if err := c.service.wait(ctx); err != nil {
		return err
	}

	var callbackErr error
	_, err := c.llm.GenerateContent(ctx, content,
		llms.WithModel(model),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if err := onFragment(ctx, string(chunk)); err != nil {
				callbackErr = err
				return err
			}
			return nil
		}),
	)
	if callbackErr != nil {
		return callbackErr
	}
	if err != nil {
		return fmt.Errorf("%w: generating completion: %v", ErrProvider, err)
	}
	return nil
}

func chatMessageType(role Role) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
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
