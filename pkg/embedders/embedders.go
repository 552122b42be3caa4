// Package embedders produces vector embeddings for chunks and queries.
package embedders

import (
	"context"
	"fmt"

	"github.com/documind/documind/pkg/registry"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// Registry holds named embedding providers.
type Registry struct {
	*registry.BaseRegistry[Embedder]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Embedder](),
	}
}

func (r *Registry) RegisterEmbedder(name string, e Embedder) error {
	if name == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if e == nil {
		return fmt.Errorf("embedder cannot be nil")
	}
	return r.Register(name, e)
}

func (r *Registry) GetEmbedder(name string) (Embedder, error) {
	e, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("embedder '%s' not found", name)
	}
	return e, nil
}
