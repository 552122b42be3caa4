package config

import (
	"fmt"
	"time"
)

// StorageConfig configures the on-disk document layout.
type StorageConfig struct {
	// IncomingDir is the watched drop directory.
	// Default: ./incoming
	IncomingDir string `yaml:"incoming_dir,omitempty"`

	// SortedDir is the root of the classified document tree.
	// Default: ./sorted
	SortedDir string `yaml:"sorted_dir,omitempty"`

	// ChatsDir holds chat session files and their metadata index.
	// Default: ./chat_data
	ChatsDir string `yaml:"chats_dir,omitempty"`

	// DateSubfolders adds a YYYY-MM level below the extension folder.
	// Default: false
	DateSubfolders bool `yaml:"date_subfolders,omitempty"`
}

// SetDefaults applies default values to StorageConfig.
func (c *StorageConfig) SetDefaults() {
	if c.IncomingDir == "" {
		c.IncomingDir = "./incoming"
	}
	if c.SortedDir == "" {
		c.SortedDir = "./sorted"
	}
	if c.ChatsDir == "" {
		c.ChatsDir = "./chat_data"
	}
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.IncomingDir == c.SortedDir {
		return fmt.Errorf("incoming_dir and sorted_dir must differ")
	}
	return nil
}

// IngestConfig configures the ingestion worker pool and chunking.
type IngestConfig struct {
	// Workers is the number of concurrent ingestion workers.
	// Default: 4
	Workers int `yaml:"workers,omitempty"`

	// QueueSize bounds the pending ingestion queue.
	// Default: 256
	QueueSize int `yaml:"queue_size,omitempty"`

	// SettleDelay is how long a new file must sit still before ingestion.
	// Default: 1s
	SettleDelay Duration `yaml:"settle_delay,omitempty"`

	// PruneInterval is how often chunks of deleted files are swept.
	// Default: 60s
	PruneInterval Duration `yaml:"prune_interval,omitempty"`

	// Chunk sizes per file-size tier, in characters.
	// Files under 1 MB, 1-10 MB, and over 10 MB respectively.
	// Defaults: 2000, 2500, 3000
	ChunkSizeSmall  int `yaml:"chunk_size_small,omitempty"`
	ChunkSizeMedium int `yaml:"chunk_size_medium,omitempty"`
	ChunkSizeLarge  int `yaml:"chunk_size_large,omitempty"`

	// ChunkOverlap is carried between adjacent chunks, in characters.
	// Default: 200
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`
}

// SetDefaults applies default values to IngestConfig.
func (c *IngestConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = Duration(time.Second)
	}
	if c.PruneInterval == 0 {
		c.PruneInterval = Duration(60 * time.Second)
	}
	if c.ChunkSizeSmall == 0 {
		c.ChunkSizeSmall = 2000
	}
	if c.ChunkSizeMedium == 0 {
		c.ChunkSizeMedium = 2500
	}
	if c.ChunkSizeLarge == 0 {
		c.ChunkSizeLarge = 3000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
}

// Validate checks the ingest configuration.
func (c *IngestConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative")
	}
	for _, size := range []int{c.ChunkSizeSmall, c.ChunkSizeMedium, c.ChunkSizeLarge} {
		if size <= c.ChunkOverlap {
			return fmt.Errorf("chunk sizes must exceed chunk_overlap (%d)", c.ChunkOverlap)
		}
	}
	return nil
}

// QueryConfig configures the retrieval and answering pipeline.
type QueryConfig struct {
	// InitialK is the kNN candidate count before filtering and reranking.
	// Default: 25
	InitialK int `yaml:"initial_k,omitempty"`

	// FinalK is the number of chunks kept after reranking.
	// Default: 5
	FinalK int `yaml:"final_k,omitempty"`

	// MaxDistance drops candidates whose vector distance is not below it.
	// Default: 1.3
	MaxDistance float64 `yaml:"max_distance,omitempty"`

	// NoiseFloor drops reranked chunks at or below this raw cross-encoder
	// score. The default is calibrated for ms-marco-MiniLM logits; adjust
	// it when swapping reranker models.
	// Default: -5.0
	NoiseFloor *float64 `yaml:"noise_floor,omitempty"`
}

// SetDefaults applies default values to QueryConfig.
func (c *QueryConfig) SetDefaults() {
	if c.InitialK == 0 {
		c.InitialK = 25
	}
	if c.FinalK == 0 {
		c.FinalK = 5
	}
	if c.MaxDistance == 0 {
		c.MaxDistance = 1.3
	}
	if c.NoiseFloor == nil {
		floor := -5.0
		c.NoiseFloor = &floor
	}
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	if c.InitialK < 1 {
		return fmt.Errorf("initial_k must be at least 1")
	}
	if c.FinalK < 1 {
		return fmt.Errorf("final_k must be at least 1")
	}
	if c.FinalK > c.InitialK {
		return fmt.Errorf("final_k (%d) cannot exceed initial_k (%d)", c.FinalK, c.InitialK)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("max_distance must be positive")
	}
	return nil
}

// UploadsConfig configures per-user upload limits.
type UploadsConfig struct {
	// MaxFilesPerUser caps uploads for non-Admin users. Admin is unlimited.
	// Default: 10
	MaxFilesPerUser int `yaml:"max_files_per_user,omitempty"`

	// MaxFileSizeMB caps a single upload's size.
	// Default: 25
	MaxFileSizeMB int `yaml:"max_file_size_mb,omitempty"`
}

// SetDefaults applies default values to UploadsConfig.
func (c *UploadsConfig) SetDefaults() {
	if c.MaxFilesPerUser == 0 {
		c.MaxFilesPerUser = 10
	}
	if c.MaxFileSizeMB == 0 {
		c.MaxFileSizeMB = 25
	}
}

// Validate checks the uploads configuration.
func (c *UploadsConfig) Validate() error {
	if c.MaxFilesPerUser < 1 {
		return fmt.Errorf("max_files_per_user must be at least 1")
	}
	if c.MaxFileSizeMB < 1 {
		return fmt.Errorf("max_file_size_mb must be at least 1")
	}
	return nil
}

// ClassifierConfig configures the document classifier.
type ClassifierConfig struct {
	// LLMFallback consults the generation model when rule confidence
	// falls below FallbackThreshold.
	// Default: true
	LLMFallback *bool `yaml:"llm_fallback,omitempty"`

	// FallbackThreshold is the rule-confidence cutoff for the LLM fallback.
	// Default: 0.45
	FallbackThreshold float64 `yaml:"fallback_threshold,omitempty"`
}

// SetDefaults applies default values to ClassifierConfig.
func (c *ClassifierConfig) SetDefaults() {
	if c.LLMFallback == nil {
		c.LLMFallback = BoolPtr(true)
	}
	if c.FallbackThreshold == 0 {
		c.FallbackThreshold = 0.45
	}
}

// Validate checks the classifier configuration.
func (c *ClassifierConfig) Validate() error {
	if c.FallbackThreshold < 0 || c.FallbackThreshold > 1 {
		return fmt.Errorf("fallback_threshold must be within [0, 1]")
	}
	return nil
}
