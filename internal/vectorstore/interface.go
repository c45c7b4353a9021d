// Package vectorstore provides in-memory vector index implementations for
// similarity search over document chunk embeddings.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector index operations.
var (
	// ErrDimensionMismatch is returned when a vector's dimensionality does not
	// match the index's established dimensionality. The index is not mutated.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidK is returned when a query requests a non-positive k.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyVector is returned when an empty vector is inserted or queried.
	ErrEmptyVector = errors.New("vector must not be empty")

	// ErrUnknownProvider indicates an unrecognized index provider name.
	ErrUnknownProvider = errors.New("unknown vectorstore provider")
)

// Result is one similarity match returned by a query.
type Result struct {
	// Text is the stored chunk text.
	Text string

	// SourceIndex is the chunk's position within its source document.
	SourceIndex int

	// Score is the cosine similarity between the query vector and the stored
	// vector, in [-1, 1]. Higher is more similar.
	Score float32
}

// Index stores (chunk text, embedding) entries and answers k-nearest-neighbor
// queries by cosine similarity.
//
// The dimensionality of the index is established by the first inserted vector;
// every later insert and query must match it. An index is mutated only during
// its owning collection's ingestion and is read-only afterward, so concurrent
// queries against a finished index never contend with writes.
//
// The contract is deliberately backend-agnostic: the default implementation is
// an exhaustive scan, but an approximate structure can be substituted without
// callers noticing.
type Index interface {
	// Insert adds one entry and returns its insertion position.
	// Fails with ErrDimensionMismatch if the vector's length differs from the
	// established dimensionality; the index is left unchanged on failure.
	Insert(ctx context.Context, text string, sourceIndex int, vector []float32) (int, error)

	// Query returns up to k entries ordered by descending cosine similarity
	// against the given vector. k larger than the entry count returns all
	// entries; k <= 0 fails with ErrInvalidK. Entries with equal scores are
	// returned in insertion order.
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)

	// Len returns the number of stored entries.
	Len() int

	// Dimension returns the established dimensionality, or 0 before the first
	// insert.
	Dimension() int

	// Close releases any resources held by the index.
	Close() error
}
