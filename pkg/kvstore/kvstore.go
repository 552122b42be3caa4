// Package kvstore is the Redis-backed key-value layer.
//
// It holds four families of keys:
//
//	file_hashes                 hash: content SHA-256 -> sorted filepath
//	file_metadata:<hash>        hash: per-file ingestion metadata
//	custom_categories:<domain>  string: JSON blob of admin-defined categories
//	analytics:stats             string: cached analytics JSON, 5 minute TTL
//	stats:languages             hash: detected language -> ingest count
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/documind/documind/pkg/config"
)

const (
	keyFileHashes             = "file_hashes"
	keyFileMetadataPrefix     = "file_metadata:"
	keyCustomCategoriesPrefix = "custom_categories:"
	keyAnalyticsCache         = "analytics:stats"
	keyLanguageStats          = "stats:languages"
)

// FileMetadata is the per-file record written after indexing.
type FileMetadata struct {
	SizeMB      float64 `json:"size_mb"`
	ChunkSize   int     `json:"chunk_size"`
	ChunksCount int     `json:"chunks_count"`
	Domain      string  `json:"domain"`
	Category    string  `json:"category"`
	UploadedAt  string  `json:"uploaded_at"`
	FileHash    string  `json:"file_hash"`
}

// Store wraps the Redis client with the service's key schema.
type Store struct {
	client *redis.Client
}

// New connects to Redis using the given configuration.
func New(cfg *config.RedisConfig) *Store {
	if cfg == nil {
		cfg = &config.RedisConfig{}
		cfg.SetDefaults()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// LookupFileHash returns the sorted path recorded for a content hash.
func (s *Store) LookupFileHash(ctx context.Context, fileHash string) (string, bool, error) {
	path, err := s.client.HGet(ctx, keyFileHashes, fileHash).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up file hash: %w", err)
	}
	return path, true, nil
}

// StoreFileHash records the sorted path for a content hash.
func (s *Store) StoreFileHash(ctx context.Context, fileHash, path string) error {
	if err := s.client.HSet(ctx, keyFileHashes, fileHash, path).Err(); err != nil {
		return fmt.Errorf("failed to store file hash: %w", err)
	}
	return nil
}

// DeleteFileHash removes a content hash entry.
func (s *Store) DeleteFileHash(ctx context.Context, fileHash string) error {
	if err := s.client.HDel(ctx, keyFileHashes, fileHash).Err(); err != nil {
		return fmt.Errorf("failed to delete file hash: %w", err)
	}
	return nil
}

// AllFileHashes returns the full hash-to-path map.
func (s *Store) AllFileHashes(ctx context.Context) (map[string]string, error) {
	entries, err := s.client.HGetAll(ctx, keyFileHashes).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list file hashes: %w", err)
	}
	return entries, nil
}

// FindHashByPath returns the content hash recorded for a sorted path.
func (s *Store) FindHashByPath(ctx context.Context, path string) (string, bool, error) {
	entries, err := s.AllFileHashes(ctx)
	if err != nil {
		return "", false, err
	}
	for hash, p := range entries {
		if p == path {
			return hash, true, nil
		}
	}
	return "", false, nil
}

// StoreFileMetadata writes the per-file metadata hash.
func (s *Store) StoreFileMetadata(ctx context.Context, fileHash string, md FileMetadata) error {
	err := s.client.HSet(ctx, keyFileMetadataPrefix+fileHash, metadataToMap(md)).Err()
	if err != nil {
		return fmt.Errorf("failed to store file metadata: %w", err)
	}
	return nil
}

// FileMetadata reads the per-file metadata hash; ok is false when absent.
func (s *Store) FileMetadata(ctx context.Context, fileHash string) (*FileMetadata, bool, error) {
	fields, err := s.client.HGetAll(ctx, keyFileMetadataPrefix+fileHash).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read file metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	md := metadataFromMap(fields)
	return &md, true, nil
}

// DeleteFileMetadata removes the per-file metadata hash.
func (s *Store) DeleteFileMetadata(ctx context.Context, fileHash string) error {
	if err := s.client.Del(ctx, keyFileMetadataPrefix+fileHash).Err(); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	return nil
}

// CustomCategories loads the admin-defined categories for a domain.
func (s *Store) CustomCategories(ctx context.Context, domain string) (map[string][]string, error) {
	data, err := s.client.Get(ctx, keyCustomCategoriesPrefix+domain).Result()
	if err == redis.Nil {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load custom categories for %s: %w", domain, err)
	}

	var categories map[string][]string
	if err := json.Unmarshal([]byte(data), &categories); err != nil {
		return nil, fmt.Errorf("corrupt custom categories for %s: %w", domain, err)
	}
	return categories, nil
}

// SetCustomCategories replaces the custom category blob for a domain.
func (s *Store) SetCustomCategories(ctx context.Context, domain string, categories map[string][]string) error {
	data, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("failed to marshal custom categories: %w", err)
	}
	if err := s.client.Set(ctx, keyCustomCategoriesPrefix+domain, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store custom categories for %s: %w", domain, err)
	}
	return nil
}

// CustomCategoryDomains lists every domain that has custom categories.
func (s *Store) CustomCategoryDomains(ctx context.Context) ([]string, error) {
	var domains []string
	iter := s.client.Scan(ctx, 0, keyCustomCategoriesPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		domains = append(domains, key[len(keyCustomCategoriesPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan custom category keys: %w", err)
	}
	return domains, nil
}

// CachedAnalytics returns the cached analytics JSON, if present.
func (s *Store) CachedAnalytics(ctx context.Context) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, keyAnalyticsCache).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read analytics cache: %w", err)
	}
	return data, true, nil
}

// CacheAnalytics stores analytics JSON with a TTL.
func (s *Store) CacheAnalytics(ctx context.Context, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyAnalyticsCache, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache analytics: %w", err)
	}
	return nil
}

// ClearAnalyticsCache drops the cached analytics JSON.
func (s *Store) ClearAnalyticsCache(ctx context.Context) error {
	if err := s.client.Del(ctx, keyAnalyticsCache).Err(); err != nil {
		return fmt.Errorf("failed to clear analytics cache: %w", err)
	}
	return nil
}

// IncrementLanguage bumps the ingest counter for a detected language.
func (s *Store) IncrementLanguage(ctx context.Context, language string) error {
	if err := s.client.HIncrBy(ctx, keyLanguageStats, language, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment language count: %w", err)
	}
	return nil
}

// LanguageCounts returns the language distribution across ingested files.
func (s *Store) LanguageCounts(ctx context.Context) (map[string]int64, error) {
	fields, err := s.client.HGetAll(ctx, keyLanguageStats).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read language counts: %w", err)
	}
	counts := make(map[string]int64, len(fields))
	for lang, value := range fields {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		counts[lang] = n
	}
	return counts, nil
}

func metadataToMap(md FileMetadata) map[string]interface{} {
	return map[string]interface{}{
		"size_mb":      strconv.FormatFloat(md.SizeMB, 'f', 2, 64),
		"chunk_size":   strconv.Itoa(md.ChunkSize),
		"chunks_count": strconv.Itoa(md.ChunksCount),
		"domain":       md.Domain,
		"category":     md.Category,
		"uploaded_at":  md.UploadedAt,
		"file_hash":    md.FileHash,
	}
}

func metadataFromMap(fields map[string]string) FileMetadata {
	md := FileMetadata{
		Domain:     fields["domain"],
		Category:   fields["category"],
		UploadedAt: fields["uploaded_at"],
		FileHash:   fields["file_hash"],
	}
	md.SizeMB, _ = strconv.ParseFloat(fields["size_mb"], 64)
	md.ChunkSize, _ = strconv.Atoi(fields["chunk_size"])
	md.ChunksCount, _ = strconv.Atoi(fields["chunks_count"])
	return md
}
