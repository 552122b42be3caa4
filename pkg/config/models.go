package config

import (
	"fmt"
	"time"
)

// OllamaConfig configures the Ollama runtime used for embeddings,
// answer generation and the classifier LLM fallback.
type OllamaConfig struct {
	// BaseURL of the Ollama server.
	// Default: http://localhost:11434
	BaseURL string `yaml:"base_url,omitempty"`

	// EmbeddingModel produces chunk and query embeddings.
	// Default: nomic-embed-text
	EmbeddingModel string `yaml:"embedding_model,omitempty"`

	// GenerationModel answers questions and classifies documents.
	// Default: llama3.2:3b
	GenerationModel string `yaml:"generation_model,omitempty"`

	// Timeout bounds a single embedding or generation request.
	// Default: 120s
	Timeout Duration `yaml:"timeout,omitempty"`

	// MaxRetries bounds retry attempts against the runtime.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// TLS configures certificates when the runtime sits behind HTTPS.
	TLS *BackendTLSConfig `yaml:"tls,omitempty"`
}

// BackendTLSConfig configures TLS towards a model backend.
type BackendTLSConfig struct {
	// InsecureSkipVerify skips certificate verification (dev/test only).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`

	// CACertificate is a path to a custom CA bundle.
	CACertificate string `yaml:"ca_certificate,omitempty"`
}

// SetDefaults applies default values to OllamaConfig.
func (c *OllamaConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "nomic-embed-text"
	}
	if c.GenerationModel == "" {
		c.GenerationModel = "llama3.2:3b"
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(120 * time.Second)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the Ollama configuration.
func (c *OllamaConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// RerankerConfig configures the cross-encoder reranking service.
//
// Disabled or unreachable rerankers degrade to similarity ordering;
// answering never fails because reranking did.
type RerankerConfig struct {
	// Enabled turns reranking on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// URL of the rerank endpoint.
	// Default: http://localhost:8500/rerank
	URL string `yaml:"url,omitempty"`

	// Model named in rerank requests.
	// Default: cross-encoder/ms-marco-MiniLM-L-6-v2
	Model string `yaml:"model,omitempty"`

	// Timeout bounds a single rerank request.
	// Default: 30s
	Timeout Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values to RerankerConfig.
func (c *RerankerConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.URL == "" {
		c.URL = "http://localhost:8500/rerank"
	}
	if c.Model == "" {
		c.Model = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
}

// Validate checks the reranker configuration.
func (c *RerankerConfig) Validate() error {
	if BoolValue(c.Enabled, true) && c.URL == "" {
		return fmt.Errorf("url is required when reranker is enabled")
	}
	return nil
}
