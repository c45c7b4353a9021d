package vectorstore

import "fmt"

// Provider names accepted by NewIndex.
const (
	ProviderMemory  = "memory"
	ProviderChromem = "chromem"
)

// NewIndex creates an empty Index for the named provider.
//
//   - "memory" (default): exhaustive-scan MemoryIndex, insertion-order
//     tie-break, zero dependencies on index state outside the process.
//   - "chromem": embedded chromem-go database fed precomputed embeddings.
//
// Every collection owns exactly one Index; the factory is called once per
// ingestion.
func NewIndex(provider string) (Index, error) {
	switch provider {
	case ProviderMemory, "":
		return NewMemoryIndex(), nil
	case ProviderChromem:
		return NewChromemIndex()
	default:
		return nil, fmt.Errorf("%w: %q (supported: memory, chromem)", ErrUnknownProvider, provider)
	}
}
