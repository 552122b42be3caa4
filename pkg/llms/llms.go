// Package llms wraps text generation backends behind one small interface.
//
// The service uses generation in two places: answering questions over
// retrieved chunks and the classifier's low-confidence fallback. Both are
// single-shot prompt-in, text-out calls.
package llms

import (
	"context"
	"fmt"

	"github.com/documind/documind/pkg/registry"
)

// GenerateOptions tune a single generation call.
type GenerateOptions struct {
	// System is the system prompt, empty for none.
	System string

	// Temperature overrides the provider default when >= 0.
	Temperature float64

	// MaxTokens caps the response length when > 0.
	MaxTokens int
}

// GenerateOption mutates GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithSystem sets the system prompt.
func WithSystem(system string) GenerateOption {
	return func(o *GenerateOptions) {
		o.System = system
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

func applyOptions(opts []GenerateOption) GenerateOptions {
	options := GenerateOptions{Temperature: -1}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// Available probes whether the backend is reachable.
	Available(ctx context.Context) bool

	Close() error
}

// Registry holds named generation providers.
type Registry struct {
	*registry.BaseRegistry[Generator]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Generator](),
	}
}

func (r *Registry) RegisterGenerator(name string, g Generator) error {
	if name == "" {
		return fmt.Errorf("generator name cannot be empty")
	}
	if g == nil {
		return fmt.Errorf("generator cannot be nil")
	}
	return r.Register(name, g)
}

func (r *Registry) GetGenerator(name string) (Generator, error) {
	g, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("generator '%s' not found", name)
	}
	return g, nil
}
