// Package registry tracks document collections and the vector index each one
// owns.
//
// The registry is the only state shared across concurrent requests. Mutations
// are mutually exclusive; a Get racing a Delete observes either the pre- or
// post-delete state, never a partially removed entry. Collections are
// registered only after ingestion completes, so a registered collection's
// index is always fully built and read-only.
//
// State is process-memory only. Nothing survives a restart except the original
// uploaded file bytes on disk; that is a deliberate property of the service,
// not an accident.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

// Errors for registry operations.
var (
	// ErrNotFound is returned when no collection has the given id.
	ErrNotFound = errors.New("collection not found")

	// ErrDuplicateID is returned when registering an id that already exists.
	// Ids are UUIDs, so this indicates a caller bug rather than a collision.
	ErrDuplicateID = errors.New("collection id already registered")
)

// Collection binds one uploaded document to its vector index and metadata.
type Collection struct {
	ID         string
	Name       string
	FileName   string
	FilePath   string
	CreatedAt  time.Time
	ChunkCount int

	// Index is exclusively owned by this collection. It is fully built before
	// registration and read-only afterward.
	Index vectorstore.Index
}

// Summary is the cheap listing view of a collection: metadata only, no
// vectors.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileName   string    `json:"file_name"`
	ChunkCount int       `json:"total_chunks"`
	CreatedAt  time.Time `json:"created_at"`
}

// Registry is a process-wide map of collection id to Collection.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
	}
}

// Register adds a fully ingested collection. Fails with ErrDuplicateID if the
// id is already present; the existing entry is untouched.
func (r *Registry) Register(c *Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[c.ID]; exists {
		return ErrDuplicateID
	}
	r.collections[c.ID] = c
	return nil
}

// Get returns the collection with the given id, or ErrNotFound.
func (r *Registry) Get(id string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// List returns summaries of all collections, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.collections))
	for _, c := range r.collections {
		summaries = append(summaries, Summary{
			ID:         c.ID,
			Name:       c.Name,
			FileName:   c.FileName,
			ChunkCount: c.ChunkCount,
			CreatedAt:  c.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// Delete removes the collection and returns it so the caller can release the
// index and the backing file. Fails with ErrNotFound if absent.
//
// Removal of backing storage is the caller's job; the registry only forgets
// the entry.
func (r *Registry) Delete(id string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.collections, id)
	return c, nil
}

// Len returns the number of registered collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}
