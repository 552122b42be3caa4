package config

import "fmt"

// RedisConfig configures the Redis key-value store used for file hashes,
// file metadata, custom categories and the analytics cache.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	// Default: localhost:6379
	Addr string `yaml:"addr,omitempty"`

	// Password authenticates against Redis. Supports ${ENV} expansion.
	Password string `yaml:"password,omitempty"`

	// DB selects the Redis logical database.
	// Default: 0
	DB int `yaml:"db,omitempty"`
}

// SetDefaults applies default values to RedisConfig.
func (c *RedisConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// Validate checks the Redis configuration.
func (c *RedisConfig) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	return nil
}

// QdrantConfig configures the Qdrant vector database.
type QdrantConfig struct {
	// Host of the Qdrant server.
	// Default: localhost
	Host string `yaml:"host,omitempty"`

	// Port of the Qdrant gRPC interface.
	// Default: 6334
	Port int `yaml:"port,omitempty"`

	// APIKey authenticates against Qdrant Cloud. Supports ${ENV} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS for the Qdrant connection.
	// Default: false
	UseTLS bool `yaml:"use_tls,omitempty"`

	// Collection is the collection holding document chunks.
	// Default: documents
	Collection string `yaml:"collection,omitempty"`

	// VectorSize is the embedding dimensionality of the collection.
	// Default: 768 (nomic-embed-text)
	VectorSize uint64 `yaml:"vector_size,omitempty"`
}

// SetDefaults applies default values to QdrantConfig.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 768
	}
}

// Validate checks the Qdrant configuration.
func (c *QdrantConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
