// Package rag orchestrates document ingestion and retrieval-augmented
// question answering.
//
// Ingestion extracts text from an uploaded file, splits it into overlapping
// chunks, embeds every chunk in one batch, loads the vectors into a fresh
// index, and registers the finished collection. Answering embeds the
// question, retrieves the top-k most similar chunks, assembles them into a
// system prompt, and streams the model's completion back to the caller.
package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/extraction"
	"github.com/fyrsmithlabs/docchat/internal/generation"
	"github.com/fyrsmithlabs/docchat/internal/registry"
	"github.com/fyrsmithlabs/docchat/internal/splitter"
	"github.com/fyrsmithlabs/docchat/internal/storage"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

const tracerName = "github.com/fyrsmithlabs/docchat/internal/rag"

var (
	// ErrEmptyDocument indicates the uploaded file contained no text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidK indicates a negative retrieval count.
	ErrInvalidK = errors.New("k must not be negative")
)

// EmbedderFactory creates embedding clients bound to an API key.
type EmbedderFactory interface {
	Client(apiKey string) (embeddings.Embedder, error)
}

// StreamerFactory creates generation clients bound to an API key.
type StreamerFactory interface {
	Client(apiKey string) (generation.Streamer, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the character overlap between consecutive chunks.
	ChunkOverlap int

	// TopK is the default number of chunks retrieved per question.
	TopK int

	// VectorProvider selects the vector index backend.
	VectorProvider string
}

// Service drives the ingestion and answering pipelines.
type Service struct {
	config     Config
	splitter   *splitter.Splitter
	registry   *registry.Registry
	files      *storage.Store
	embeddings EmbedderFactory
	generation StreamerFactory
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService creates the orchestrator. The splitter parameters are validated
// here so that misconfiguration fails at startup rather than on the first
// upload.
func NewService(config Config, reg *registry.Registry, files *storage.Store, embedderFactory EmbedderFactory, streamerFactory StreamerFactory, logger *zap.Logger) (*Service, error) {
	split, err := splitter.New(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating splitter: %w", err)
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", config.TopK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:     config,
		splitter:   split,
		registry:   reg,
		files:      files,
		embeddings: embedderFactory,
		generation: streamerFactory,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// IngestRequest describes one document upload.
type IngestRequest struct {
	// FileName is the original upload file name; its extension selects the
	// text extractor.
	FileName string

	// Data is the raw file content.
	Data []byte

	// CollectionName labels the collection. Defaults to FileName.
	CollectionName string

	// APIKey is the caller-supplied embedding provider credential.
	APIKey string
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	CollectionID   string `json:"collection_id"`
	CollectionName string `json:"collection_name"`
	FileName       string `json:"file_name"`
	ChunkCount     int    `json:"chunks_processed"`
}

// Ingest runs the full ingestion pipeline. It is all-or-nothing: on any
// failure no collection is registered and the saved upload is removed.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ingest",
		trace.WithAttributes(attribute.String("file_name", req.FileName)))
	defer span.End()

	text, err := extraction.Extract(req.FileName, req.Data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyDocument
	}

	embedder, err := s.embeddings.Client(req.APIKey)
	if err != nil {
		return nil, err
	}

	collectionID := uuid.NewString()

	filePath, err := s.files.Save(collectionID, req.FileName, bytes.NewReader(req.Data))
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	cleanup := func() {
		if err := s.files.Delete(filePath); err != nil {
			s.logger.Warn("failed to remove upload after ingestion failure",
				zap.String("path", filePath), zap.Error(err))
		}
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		cleanup()
		return nil, ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		cleanup()
		return nil, err
	}
	if len(vectors) != len(chunks) {
		cleanup()
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", embeddings.ErrProvider, len(chunks), len(vectors))
	}

	// The index stays transient until every chunk is inserted; a partial
	// index is discarded, never registered.
	index, err := vectorstore.NewIndex(s.config.VectorProvider)
	if err != nil {
		cleanup()
		return nil, err
	}
	for i, chunk := range chunks {
		if _, err := index.Insert(ctx, chunk.Text, chunk.Index, vectors[i]); err != nil {
			cleanup()
			index.Close()
			return nil, fmt.Errorf("indexing chunk %d: %w", chunk.Index, err)
		}
	}

	name := req.CollectionName
	if name == "" {
		name = req.FileName
	}

	collection := &registry.Collection{
		ID:         collectionID,
		Name:       name,
		FileName:   req.FileName,
		FilePath:   filePath,
		CreatedAt:  time.Now().UTC(),
		ChunkCount: len(chunks),
		Index:      index,
	}
	if err := s.registry.Register(collection); err != nil {
		cleanup()
		index.Close()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("collection_id", collectionID),
		attribute.Int("chunk_count", len(chunks)),
	)
	s.logger.Info("document ingested",
		zap.String("collection_id", collectionID),
		zap.String("file_name", req.FileName),
		zap.Int("chunk_count", len(chunks)),
	)

	return &IngestResult{
		CollectionID:   collectionID,
		CollectionName: name,
		FileName:       req.FileName,
		ChunkCount:     len(chunks),
	}, nil
}

// ListCollections returns summaries of all registered collections, oldest
// first.
func (s *Service) ListCollections() []registry.Summary {
	return s.registry.List()
}

// DeleteCollection removes a collection, its vector index, and the uploaded
// file. Returns registry.ErrNotFound for unknown ids.
func (s *Service) DeleteCollection(ctx context.Context, id string) error {
	_, span := s.tracer.Start(ctx, "rag.DeleteCollection",
		trace.WithAttributes(attribute.String("collection_id", id)))
	defer span.End()

	collection, err := s.registry.Delete(id)
	if err != nil {
		return err
	}

	if err := collection.Index.Close(); err != nil {
		s.logger.Warn("failed to close vector index",
			zap.String("collection_id", id), zap.Error(err))
	}
	if err := s.files.Delete(collection.FilePath); err != nil {
		s.logger.Warn("failed to remove uploaded file",
			zap.String("collection_id", id), zap.Error(err))
	}

	s.logger.Info("collection deleted", zap.String("collection_id", id))
	return nil
}
