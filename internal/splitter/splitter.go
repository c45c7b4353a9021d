// Package splitter turns raw document text into overlapping chunks for indexing.
package splitter

import (
	"errors"
	"fmt"
)

// Sentinel errors for splitter construction.
var (
	// ErrInvalidChunkSize is returned when chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap is returned when overlap is negative or not smaller
	// than the chunk size. An overlap >= size would make the window step
	// non-positive and the split loop would never terminate.
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Default splitting parameters, matching the ingestion defaults of the service.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is one bounded, possibly overlapping segment of a document's text.
type Chunk struct {
	// Text is the chunk content. Never empty.
	Text string

	// Index is the chunk's position within the document's chunk sequence.
	// Used for traceability only, not for retrieval ranking.
	Index int
}

// Splitter splits text into fixed-size chunks with a configured overlap.
//
// Splitting is deterministic: the same input always produces the same chunk
// sequence. The splitter holds no state across calls and is safe for
// concurrent use.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Splitter with the given chunk size and overlap (in characters).
//
// Returns ErrInvalidChunkSize if size <= 0, and ErrInvalidOverlap unless
// 0 <= overlap < size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidOverlap, chunkSize, chunkOverlap)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// ChunkSize returns the configured chunk size in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap in characters.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Split walks text by character offset and emits chunks of up to chunkSize
// characters, each window starting chunkSize-chunkOverlap characters after the
// previous one. The final chunk may be shorter than chunkSize. Empty input
// yields an empty sequence.
//
// Offsets are in runes, not bytes, so multi-byte characters never straddle a
// chunk boundary.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap

	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text:  string(runes[start:end]),
			Index: len(chunks),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
