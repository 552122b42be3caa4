// Package ingest turns dropped files into classified, indexed documents.
//
// The pipeline extracts text, classifies it into a domain/category, moves
// the file into the sorted tree, chunks it adaptively and writes the chunks
// to the vector index. Redis records the content hash, per-file metadata
// and language statistics as side effects.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"github.com/documind/documind/pkg/chunker"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/embedders"
	"github.com/documind/documind/pkg/extractors"
	"github.com/documind/documind/pkg/kvstore"
	"github.com/documind/documind/pkg/metrics"
	"github.com/documind/documind/pkg/uploads"
	"github.com/documind/documind/pkg/vectordb"
)

// chunkIDNamespace seeds deterministic chunk IDs so re-ingesting a file
// overwrites its previous points instead of accumulating them.
var chunkIDNamespace = uuid.MustParse("9f2c1710-3d55-4e1a-9b6f-0c6a5d1f8e42")

// KV is the slice of the key-value store the pipeline writes to.
type KV interface {
	LookupFileHash(ctx context.Context, fileHash string) (string, bool, error)
	StoreFileHash(ctx context.Context, fileHash, path string) error
	DeleteFileHash(ctx context.Context, fileHash string) error
	AllFileHashes(ctx context.Context) (map[string]string, error)
	StoreFileMetadata(ctx context.Context, fileHash string, md kvstore.FileMetadata) error
	DeleteFileMetadata(ctx context.Context, fileHash string) error
	IncrementLanguage(ctx context.Context, language string) error
}

// Result summarizes one processed file.
type Result struct {
	Filename   string `json:"filename"`
	SortedPath string `json:"sorted_path"`
	Domain     string `json:"domain"`
	Category   string `json:"category"`
	Chunks     int    `json:"chunks"`
	Duplicate  bool   `json:"duplicate"`
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	storage    *config.StorageConfig
	collection string

	extractors *extractors.Service
	classifier *classifier.Classifier
	chunker    *chunker.Chunker
	embedder   embedders.Embedder
	store      vectordb.Provider
	kv         KV
	tracker    *uploads.Tracker
	logger     *slog.Logger
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithUploadTracker lets the pipeline stamp sorted paths onto upload records.
func WithUploadTracker(tracker *uploads.Tracker) PipelineOption {
	return func(p *Pipeline) {
		p.tracker = tracker
	}
}

// NewPipeline builds the ingestion pipeline.
func NewPipeline(
	storage *config.StorageConfig,
	collection string,
	extractorSvc *extractors.Service,
	cls *classifier.Classifier,
	chk *chunker.Chunker,
	embedder embedders.Embedder,
	store vectordb.Provider,
	kv KV,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		storage:    storage,
		collection: collection,
		extractors: extractorSvc,
		classifier: cls,
		chunker:    chk,
		embedder:   embedder,
		store:      store,
		kv:         kv,
		logger:     slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline for one incoming file.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	started := time.Now()

	result, err := p.process(ctx, path)
	if err != nil {
		metrics.IngestFailures.Inc()
		return nil, err
	}

	metrics.FilesIngested.WithLabelValues(result.Domain).Inc()
	metrics.IngestDuration.Observe(time.Since(started).Seconds())
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, path string) (*Result, error) {
	filename := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}
	sizeBytes := info.Size()
	sizeMB := float64(sizeBytes) / (1024 * 1024)

	extraction, err := p.extractors.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", filename, err)
	}
	text := extraction.Text
	fileHash := extraction.SHA256

	duplicate := false
	if existing, found, err := p.kv.LookupFileHash(ctx, fileHash); err != nil {
		p.logger.Warn("Duplicate lookup failed", "file", filename, "error", err)
	} else if found {
		if _, statErr := os.Stat(existing); statErr == nil {
			p.logger.Warn("Duplicate content detected, processing anyway",
				"file", filename, "original", existing)
			metrics.DuplicatesDetected.Inc()
			duplicate = true
		}
	}

	hierarchy := p.classifier.Classify(ctx, text, filename)

	destPath, err := p.place(ctx, path, filename, hierarchy)
	if err != nil {
		return nil, err
	}

	chunkSize := p.chunker.SizeFor(sizeBytes)
	chunks := p.chunker.Chunk(text, sizeBytes)
	p.logger.Info("Chunked file",
		"file", filename, "size_mb", fmt.Sprintf("%.2f", sizeMB),
		"chunk_size", chunkSize, "chunks", len(chunks))

	if len(chunks) > 0 {
		if err := p.index(ctx, destPath, filename, fileHash, hierarchy, chunks); err != nil {
			return nil, err
		}

		if err := p.kv.StoreFileHash(ctx, fileHash, destPath); err != nil {
			p.logger.Warn("Failed to store file hash", "file", filename, "error", err)
		}
		md := kvstore.FileMetadata{
			SizeMB:      sizeMB,
			ChunkSize:   chunkSize,
			ChunksCount: len(chunks),
			Domain:      hierarchy.Domain,
			Category:    hierarchy.Category,
			UploadedAt:  time.Now().Format(time.RFC3339),
			FileHash:    fileHash,
		}
		if err := p.kv.StoreFileMetadata(ctx, fileHash, md); err != nil {
			p.logger.Warn("Failed to store file metadata", "file", filename, "error", err)
		}
	}

	p.recordLanguage(ctx, text)
	p.fillSortedPath(filename, destPath)

	relPath, _ := filepath.Rel(p.storage.SortedDir, destPath)
	return &Result{
		Filename:   filename,
		SortedPath: filepath.ToSlash(relPath),
		Domain:     hierarchy.Domain,
		Category:   hierarchy.Category,
		Chunks:     len(chunks),
		Duplicate:  duplicate,
	}, nil
}

// place moves the file into sorted/<Domain>/<Category>/<ext>[/<YYYY-MM>].
// An existing file at the destination is replaced and its chunks dropped;
// when removal fails the incoming file gets a _<n> suffix instead.
func (p *Pipeline) place(ctx context.Context, path, filename string, hierarchy classifier.Result) (string, error) {
	dir := filepath.Join(p.storage.SortedDir, hierarchy.Domain, hierarchy.Category, hierarchy.FileExtension)
	if p.storage.DateSubfolders {
		dir = filepath.Join(dir, time.Now().Format("2006-01"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sorted directory: %w", err)
	}

	destPath := filepath.Join(dir, filename)
	if _, err := os.Stat(destPath); err == nil {
		p.logger.Info("Destination exists, overwriting", "file", filename)
		if err := p.store.DeleteByFilter(ctx, p.collection,
			map[string]interface{}{"filepath": destPath}); err != nil {
			p.logger.Warn("Failed to drop stale chunks", "file", filename, "error", err)
		}
		if err := os.Remove(destPath); err != nil {
			p.logger.Warn("Could not remove existing file, renaming", "file", filename, "error", err)
			stem := strings.TrimSuffix(filename, filepath.Ext(filename))
			suffix := filepath.Ext(filename)
			for counter := 2; ; counter++ {
				destPath = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, suffix))
				if _, err := os.Stat(destPath); os.IsNotExist(err) {
					break
				}
			}
		}
	}

	if err := os.Rename(path, destPath); err != nil {
		return "", fmt.Errorf("failed to move file into sorted tree: %w", err)
	}
	return destPath, nil
}

// index embeds every chunk and upserts it with the retrieval payload.
func (p *Pipeline) index(ctx context.Context, destPath, filename, fileHash string, hierarchy classifier.Result, chunks []chunker.Chunk) error {
	points := make([]vectordb.Point, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := p.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of %s: %w", chunk.Index, filename, err)
		}
		points = append(points, vectordb.Point{
			ID:     chunkID(fileHash, chunk.Index),
			Vector: vector,
			Metadata: map[string]interface{}{
				"content":      chunk.Content,
				"filename":     filename,
				"filepath":     destPath,
				"domain":       hierarchy.Domain,
				"category":     hierarchy.Category,
				"file_hash":    fileHash,
				"chunk_index":  chunk.Index,
				"chunks_total": chunk.Total,
			},
		})
	}

	if err := p.store.Upsert(ctx, p.collection, points); err != nil {
		return fmt.Errorf("failed to index chunks of %s: %w", filename, err)
	}
	return nil
}

func (p *Pipeline) recordLanguage(ctx context.Context, text string) {
	if len(text) == 0 {
		return
	}
	sample := text
	if len(sample) > 2048 {
		sample = sample[:2048]
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return
	}
	if err := p.kv.IncrementLanguage(ctx, info.Lang.Iso6391()); err != nil {
		p.logger.Warn("Failed to record language", "error", err)
	}
}

func (p *Pipeline) fillSortedPath(filename, destPath string) {
	if p.tracker == nil {
		return
	}
	relPath, err := filepath.Rel(p.storage.SortedDir, destPath)
	if err != nil {
		return
	}
	filled, err := p.tracker.FillSortedPath(filename, filepath.ToSlash(relPath))
	if err != nil {
		p.logger.Error("Failed to update upload record", "file", filename, "error", err)
		return
	}
	if !filled {
		p.logger.Warn("No pending upload record for file", "file", filename)
	}
}

// Prune drops index entries whose sorted file no longer exists. The hash
// records drive the first sweep; a scroll over the collection then catches
// chunks that were indexed but never made it into the hash records.
func (p *Pipeline) Prune(ctx context.Context) (int, error) {
	hashes, err := p.kv.AllFileHashes(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for fileHash, path := range hashes {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		p.logger.Info("Pruning chunks of removed file", "path", path)
		if err := p.store.DeleteByFilter(ctx, p.collection,
			map[string]interface{}{"filepath": path}); err != nil {
			p.logger.Warn("Failed to prune chunks", "path", path, "error", err)
			continue
		}
		if err := p.kv.DeleteFileHash(ctx, fileHash); err != nil {
			p.logger.Warn("Failed to drop file hash", "path", path, "error", err)
		}
		if err := p.kv.DeleteFileMetadata(ctx, fileHash); err != nil {
			p.logger.Warn("Failed to drop file metadata", "path", path, "error", err)
		}
		pruned++
	}

	orphaned, err := p.orphanedPaths(ctx, hashes)
	if err != nil {
		p.logger.Warn("Could not scan index for orphaned chunks", "error", err)
		return pruned, nil
	}
	for _, path := range orphaned {
		p.logger.Info("Pruning orphaned chunks", "path", path)
		if err := p.store.DeleteByFilter(ctx, p.collection,
			map[string]interface{}{"filepath": path}); err != nil {
			p.logger.Warn("Failed to prune chunks", "path", path, "error", err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

// orphanedPaths scrolls the collection for filepaths that carry chunks but
// are neither hash-tracked nor present on disk.
func (p *Pipeline) orphanedPaths(ctx context.Context, hashes map[string]string) ([]string, error) {
	chunks, err := p.store.GetByFilter(ctx, p.collection, nil, 0)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{}, len(hashes))
	for _, path := range hashes {
		tracked[path] = struct{}{}
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, chunk := range chunks {
		path, _ := chunk.Metadata["filepath"].(string)
		if path == "" {
			continue
		}
		if _, ok := tracked[path]; ok {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// DeleteByPath removes a sorted file's chunks from the index.
func (p *Pipeline) DeleteByPath(ctx context.Context, destPath string) error {
	return p.store.DeleteByFilter(ctx, p.collection,
		map[string]interface{}{"filepath": destPath})
}

// CleanupRemoved drops everything recorded for a removed file. Tracked
// files are cleaned by content hash, untracked ones by filepath.
func (p *Pipeline) CleanupRemoved(ctx context.Context, path string) error {
	hashes, err := p.kv.AllFileHashes(ctx)
	if err != nil {
		return err
	}

	for fileHash, recorded := range hashes {
		if recorded != path {
			continue
		}
		if err := p.store.DeleteByFilter(ctx, p.collection,
			map[string]interface{}{"file_hash": fileHash}); err != nil {
			return err
		}
		if err := p.kv.DeleteFileHash(ctx, fileHash); err != nil {
			p.logger.Warn("Failed to drop file hash", "path", path, "error", err)
		}
		if err := p.kv.DeleteFileMetadata(ctx, fileHash); err != nil {
			p.logger.Warn("Failed to drop file metadata", "path", path, "error", err)
		}
		return nil
	}

	return p.DeleteByPath(ctx, path)
}

func chunkID(fileHash string, index int) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(fmt.Sprintf("%s:%d", fileHash, index))).String()
}
