package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/generation"
)

const (
	// ragPromptTemplate frames the assistant's role around the retrieved
	// document context. The model is told to say explicitly when the answer
	// is not in the context rather than guess.
	ragPromptTemplate = `You are a legal document analysis assistant. You have access to the following document context:

%s

Please answer the user's question based on this context. If the information is not available in the context, say so clearly. Always provide accurate, helpful responses for legal professionals.`

	// genericPreamble is used when retrieval is disabled.
	genericPreamble = "You are a helpful legal assistant."

	// contextSeparator joins retrieved chunks inside the prompt.
	contextSeparator = "\n\n"
)

// AnswerRequest describes one question against a collection.
type AnswerRequest struct {
	// CollectionID identifies the collection to retrieve from.
	CollectionID string

	// Question is the user's verbatim question.
	Question string

	// Model overrides the default chat model when non-empty.
	Model string

	// APIKey is the caller-supplied provider credential, used for both the
	// question embedding and the generation call.
	APIKey string

	// K is the number of chunks to retrieve. Zero selects the configured
	// default.
	K int

	// UseRetrieval toggles retrieval. When false the question is answered
	// without any document context.
	UseRetrieval bool
}

func (r AnswerRequest) validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if r.K < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, r.K)
	}
	return nil
}

// SystemPrompt builds the system prompt for a question.
//
// With retrieval disabled it returns the generic preamble without touching
// the collection. With retrieval enabled it embeds the question, queries the
// collection's index for the top-k chunks, and interpolates their texts, in
// ranked order separated by blank lines, into the instructional template.
func (s *Service) SystemPrompt(ctx context.Context, req AnswerRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if !req.UseRetrieval {
		return genericPreamble, nil
	}

	collection, err := s.registry.Get(req.CollectionID)
	if err != nil {
		return "", err
	}

	embedder, err := s.embeddings.Client(req.APIKey)
	if err != nil {
		return "", err
	}

	queryVector, err := embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		return "", err
	}

	k := req.K
	if k == 0 {
		k = s.config.TopK
	}
	results, err := collection.Index.Query(ctx, queryVector, k)
	if err != nil {
		return "", fmt.Errorf("querying index: %w", err)
	}

	texts := make([]string, len(results))
	for i, result := range results {
		texts[i] = result.Text
	}
	return fmt.Sprintf(ragPromptTemplate, strings.Join(texts, contextSeparator)), nil
}

// Answer streams a completion for the question, forwarding each generated
// fragment to onFragment as it arrives. Failures before the first fragment
// surface as an error; a provider drop mid-stream ends the sequence early.
func (s *Service) Answer(ctx context.Context, req AnswerRequest, onFragment func(ctx context.Context, fragment string) error) error {
	ctx, span := s.tracer.Start(ctx, "rag.Answer", trace.WithAttributes(
		attribute.String("collection_id", req.CollectionID),
		attribute.Bool("use_retrieval", req.UseRetrieval),
	))
	defer span.End()

	systemPrompt, err := s.SystemPrompt(ctx, req)
	if err != nil {
		return err
	}

	streamer, err := s.generation.Client(req.APIKey)
	if err != nil {
		return err
	}

	messages := []generation.Message{
		{Role: generation.RoleSystem, Content: systemPrompt},
		{Role: generation.RoleUser, Content: req.Question},
	}

	s.logger.Debug("streaming answer",
		zap.String("collection_id", req.CollectionID),
		zap.Bool("use_retrieval", req.UseRetrieval),
	)
	return streamer.Stream(ctx, req.Model, messages, onFragment)
}

// Chat streams a completion for a free-standing question with no document
// context and no collection. The caller supplies the system-role framing via
// developerMessage; when it is blank the generic preamble is used.
func (s *Service) Chat(ctx context.Context, developerMessage, question, model, apiKey string, onFragment func(ctx context.Context, fragment string) error) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}

	streamer, err := s.generation.Client(apiKey)
	if err != nil {
		return err
	}

	if strings.TrimSpace(developerMessage) == "" {
		developerMessage = genericPreamble
	}

	messages := []generation.Message{
		{Role: generation.RoleSystem, Content: developerMessage},
		{Role: generation.RoleUser, Content: question},
	}
	return streamer.Stream(ctx, model, messages, onFragment)
}
