// Package config defines the service configuration: a YAML file with
// environment variable expansion, decoded section by section, each section
// carrying its own defaults and validation.
package config

import "fmt"

// Config is the root configuration.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Auth       AuthConfig       `yaml:"auth,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Redis      RedisConfig      `yaml:"redis,omitempty"`
	Qdrant     QdrantConfig     `yaml:"qdrant,omitempty"`
	Ollama     OllamaConfig     `yaml:"ollama,omitempty"`
	Reranker   RerankerConfig   `yaml:"reranker,omitempty"`
	Ingest     IngestConfig     `yaml:"ingest,omitempty"`
	Query      QueryConfig      `yaml:"query,omitempty"`
	Uploads    UploadsConfig    `yaml:"uploads,omitempty"`
	Classifier ClassifierConfig `yaml:"classifier,omitempty"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
	c.Storage.SetDefaults()
	c.Redis.SetDefaults()
	c.Qdrant.SetDefaults()
	c.Ollama.SetDefaults()
	c.Reranker.SetDefaults()
	c.Ingest.SetDefaults()
	c.Query.SetDefaults()
	c.Uploads.SetDefaults()
	c.Classifier.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := c.Ollama.Validate(); err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	if err := c.Reranker.Validate(); err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := c.Query.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

// Default returns a fully-defaulted configuration, used when the service
// starts without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
