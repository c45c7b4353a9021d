package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// memoryTracer for OpenTelemetry instrumentation.
var memoryTracer = otel.Tracer("docchat.vectorstore.memory")

// scoreTolerance is the band within which two similarity scores are considered
// equal for tie-breaking purposes.
const scoreTolerance = 1e-6

// entry pairs one chunk's text with its embedding.
type entry struct {
	text        string
	sourceIndex int
	vector      []float32
}

// MemoryIndex is the default Index implementation: an append-only in-process
// store queried by exhaustive cosine-similarity scan.
//
// The scan is O(n*d) per query, which is the intended trade-off for the target
// corpus of a single document's chunks. Entries are kept in insertion order;
// that order is the tie-break for equal-similarity results.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
}

// NewMemoryIndex creates an empty MemoryIndex. The dimensionality is
// established by the first inserted vector.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Insert adds one entry. The vector is copied, so the caller may reuse its
// slice.
func (m *MemoryIndex) Insert(_ context.Context, text string, sourceIndex int, vector []float32) (int, error) {
	if len(vector) == 0 {
		return 0, ErrEmptyVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(vector)
	} else if len(vector) != m.dimension {
		return 0, fmt.Errorf("%w: index has %d, vector has %d", ErrDimensionMismatch, m.dimension, len(vector))
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	m.entries = append(m.entries, entry{
		text:        text,
		sourceIndex: sourceIndex,
		vector:      stored,
	})
	return len(m.entries) - 1, nil
}

// Query scans every stored vector and returns the top k by cosine similarity.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	_, span := memoryTracer.Start(ctx, "MemoryIndex.Query")
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimension != 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, m.dimension, len(vector))
	}

	span.SetAttributes(
		attribute.Int("entry_count", len(m.entries)),
		attribute.Int("k", k),
	)

	scores := make([]float32, len(m.entries))
	for i := range m.entries {
		scores[i] = CosineSimilarity(vector, m.entries[i].vector)
	}

	order := make([]int, len(m.entries))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps insertion order for scores within tolerance of each
	// other.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]]-scores[order[b]] > scoreTolerance
	})

	if k > len(order) {
		k = len(order)
	}

	results := make([]Result, 0, k)
	for _, idx := range order[:k] {
		e := m.entries[idx]
		results = append(results, Result{
			Text:        e.text,
			SourceIndex: e.sourceIndex,
			Score:       scores[idx],
		})
	}
	return results, nil
}

// Len returns the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension returns the established dimensionality, or 0 before the first
// insert.
func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }

// CosineSimilarity computes dot(a,b) / (|a|*|b|) in float64 precision.
// A zero-norm operand yields 0 rather than a division fault.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / math.Sqrt(normA*normB))
}

var _ Index = (*MemoryIndex)(nil)
