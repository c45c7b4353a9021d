package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("docchat.vectorstore.chromem")

// metadataSourceIndex is the chromem metadata key carrying the chunk's
// position within its source document.
const metadataSourceIndex = "source_index"

// ChromemIndex is an Index backed by an embedded chromem-go database.
//
// Each ChromemIndex owns one throwaway in-memory chromem DB with a single
// collection. Embeddings are computed upstream and handed in precomputed, so
// chromem's own embedding hook is never invoked.
//
// chromem normalizes vectors at insertion and does not guarantee a stable
// tie-break between equal-similarity results; callers that need the
// insertion-order tie-break should use MemoryIndex (the default).
type ChromemIndex struct {
	mu         sync.Mutex
	collection *chromem.Collection
	dimension  int
	count      int
}

// NewChromemIndex creates an empty ChromemIndex.
func NewChromemIndex() (*ChromemIndex, error) {
	db := chromem.NewDB()

	// The embedding func is mandatory for chromem collections but must never
	// run: every document arrives with a precomputed embedding.
	collection, err := db.CreateCollection("docchat", nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem index stores precomputed embeddings only")
	})
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}

	return &ChromemIndex{collection: collection}, nil
}

// Insert adds one entry with its precomputed embedding.
func (c *ChromemIndex) Insert(ctx context.Context, text string, sourceIndex int, vector []float32) (int, error) {
	if len(vector) == 0 {
		return 0, ErrEmptyVector
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dimension == 0 {
		c.dimension = len(vector)
	} else if len(vector) != c.dimension {
		return 0, fmt.Errorf("%w: index has %d, vector has %d", ErrDimensionMismatch, c.dimension, len(vector))
	}

	id := c.count
	doc := chromem.Document{
		ID:        strconv.Itoa(id),
		Content:   text,
		Embedding: vector,
		Metadata: map[string]string{
			metadataSourceIndex: strconv.Itoa(sourceIndex),
		},
	}
	if err := c.collection.AddDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("adding document to chromem: %w", err)
	}

	c.count++
	return id, nil
}

// Query returns up to k entries by cosine similarity against the given vector.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()

	c.mu.Lock()
	dimension := c.dimension
	count := c.count
	c.mu.Unlock()

	if dimension != 0 && len(vector) != dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, dimension, len(vector))
	}
	if count == 0 {
		return nil, nil
	}

	// chromem rejects nResults greater than the stored document count.
	if k > count {
		k = count
	}

	span.SetAttributes(
		attribute.Int("entry_count", count),
		attribute.Int("k", k),
	)

	matches, err := c.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		sourceIndex, _ := strconv.Atoi(m.Metadata[metadataSourceIndex])
		results = append(results, Result{
			Text:        m.Content,
			SourceIndex: sourceIndex,
			Score:       m.Similarity,
		})
	}
	return results, nil
}

// Len returns the number of stored entries.
func (c *ChromemIndex) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Dimension returns the established dimensionality, or 0 before the first
// insert.
func (c *ChromemIndex) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Close is a no-op: the backing DB is in-memory and garbage-collected with the
// index.
func (c *ChromemIndex) Close() error { return nil }

var _ Index = (*ChromemIndex)(nil)
