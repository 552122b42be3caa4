// Package vectordb abstracts the vector index holding document chunks.
//
// Chunks are stored with their embedding and a payload carrying content,
// filename, filepath, domain, category, file_hash and chunk_index, so every
// retrieval, cleanup and whole-file reconstruction path can filter on them.
package vectordb

import (
	"context"
	"fmt"

	"github.com/documind/documind/pkg/registry"
)

// Point is a chunk ready for indexing.
type Point struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchResult is a retrieved chunk.
//
// Score is the cosine similarity reported by the store; Distance is the
// cosine distance (1 - Score) the retrieval thresholds are written against.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Distance float32                `json:"distance"`
	Content  string                 `json:"content"`
	Vector   []float32              `json:"vector,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Provider is the vector store contract.
type Provider interface {
	// CreateCollection ensures the named collection exists with the given
	// vector size. Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert writes points, overwriting points with the same ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the topK nearest chunks to the query vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)

	// SearchWithFilter restricts Search to chunks whose payload matches
	// every key/value pair in filter.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error)

	// GetByFilter returns up to limit chunks matching the payload filter,
	// without vector scoring. limit <= 0 means no limit.
	GetByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context, collection string) (uint64, error)

	// Delete removes a single chunk by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every chunk matching the payload filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error

	// DeleteCollection drops the whole collection.
	DeleteCollection(ctx context.Context, collection string) error

	Close() error
}

// Registry holds named vector store providers.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(name, provider)
}

func (r *Registry) GetProvider(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("vector store provider '%s' not found", name)
	}
	return provider, nil
}
