// Package analytics computes statistics over the sorted document tree.
//
// Stats are cached in Redis for five minutes; ingestion-heavy deployments
// can clear the cache to force a recount.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const cacheTTL = 5 * time.Minute

// KV is the cache and language-counter slice of the key-value store.
type KV interface {
	CachedAnalytics(ctx context.Context) ([]byte, bool, error)
	CacheAnalytics(ctx context.Context, data []byte, ttl time.Duration) error
	ClearAnalyticsCache(ctx context.Context) error
	LanguageCounts(ctx context.Context) (map[string]int64, error)
}

// Stats is the aggregate view of the sorted tree.
type Stats struct {
	TotalFiles  int              `json:"total_files"`
	ByDomain    map[string]int   `json:"by_domain"`
	ByCategory  map[string]int   `json:"by_category"`
	ByExtension map[string]int   `json:"by_extension"`
	ByLanguage  map[string]int64 `json:"by_language"`
	StorageMB   float64          `json:"storage_mb"`
	LastUpdated string           `json:"last_updated"`
}

// RecentUpload is one recently sorted file.
type RecentUpload struct {
	Filename   string  `json:"filename"`
	Path       string  `json:"path"`
	SizeMB     float64 `json:"size_mb"`
	UploadedAt string  `json:"uploaded_at"`
}

// Service computes and caches analytics.
type Service struct {
	sortedDir string
	kv        KV
	logger    *slog.Logger
}

// New builds the analytics service over the sorted tree.
func New(sortedDir string, kv KV) *Service {
	return &Service{
		sortedDir: sortedDir,
		kv:        kv,
		logger:    slog.Default().With("component", "analytics"),
	}
}

// Stats returns the cached aggregate when fresh, recomputing otherwise.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if data, ok, err := s.kv.CachedAnalytics(ctx); err == nil && ok {
		var cached Stats
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	stats := s.compute()

	if counts, err := s.kv.LanguageCounts(ctx); err == nil && len(counts) > 0 {
		stats.ByLanguage = counts
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.kv.CacheAnalytics(ctx, data, cacheTTL); err != nil {
			s.logger.Warn("Failed to cache analytics", "error", err)
		}
	}
	return stats, nil
}

// compute walks the sorted tree. A directory's files are attributed to
// the directory's parent as the category, or "Other" when the parent is
// the domain itself.
func (s *Service) compute() *Stats {
	stats := &Stats{
		ByDomain:    map[string]int{},
		ByCategory:  map[string]int{},
		ByExtension: map[string]int{},
		ByLanguage:  map[string]int64{},
		LastUpdated: time.Now().Format(time.RFC3339),
	}

	domains, err := os.ReadDir(s.sortedDir)
	if err != nil {
		return stats
	}

	var storageBytes int64
	for _, domainEntry := range domains {
		if !domainEntry.IsDir() {
			continue
		}
		domain := domainEntry.Name()
		domainDir := filepath.Join(s.sortedDir, domain)
		stats.ByDomain[domain] = 0

		filepath.WalkDir(domainDir, func(dir string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil
			}

			fileCount := 0
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				fileCount++

				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == "" {
					ext = "no_ext"
				}
				stats.ByExtension[ext]++

				if info, err := entry.Info(); err == nil {
					storageBytes += info.Size()
				}
			}

			if fileCount > 0 {
				stats.TotalFiles += fileCount
				stats.ByDomain[domain] += fileCount

				category := filepath.Base(filepath.Dir(dir))
				if filepath.Dir(dir) == domainDir || dir == domainDir {
					category = "Other"
				}
				stats.ByCategory[category] += fileCount
			}
			return nil
		})
	}

	stats.StorageMB = math.Round(float64(storageBytes)/(1024*1024)*100) / 100
	return stats
}

// RecentUploads lists files modified within the last days, newest first,
// capped at 50.
func (s *Service) RecentUploads(ctx context.Context, days int) ([]RecentUpload, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var recent []RecentUpload
	filepath.WalkDir(s.sortedDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			return nil
		}
		recent = append(recent, RecentUpload{
			Filename:   d.Name(),
			Path:       path,
			SizeMB:     math.Round(float64(info.Size())/(1024*1024)*100) / 100,
			UploadedAt: info.ModTime().Format(time.RFC3339),
		})
		return nil
	})

	sort.Slice(recent, func(a, b int) bool {
		return recent[a].UploadedAt > recent[b].UploadedAt
	})
	if len(recent) > 50 {
		recent = recent[:50]
	}
	return recent, nil
}

// ClearCache drops the cached aggregate so the next read recomputes.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.kv.ClearAnalyticsCache(ctx)
}
