package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/documind/documind/pkg/chunker"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/extractors"
	"github.com/documind/documind/pkg/kvstore"
	"github.com/documind/documind/pkg/vectordb"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Close() error { return nil }

type fakeStore struct {
	mu       sync.Mutex
	points   []vectordb.Point
	deletes  []map[string]interface{}
	upserted int
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points []vectordb.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	f.upserted++
	return nil
}

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectordb.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]vectordb.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) GetByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]vectordb.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []vectordb.SearchResult
	for _, p := range f.points {
		if !payloadMatches(p.Metadata, filter) {
			continue
		}
		results = append(results, vectordb.SearchResult{ID: p.ID, Metadata: p.Metadata})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

func (f *fakeStore) Count(ctx context.Context, collection string) (uint64, error) {
	return uint64(len(f.points)), nil
}

func (f *fakeStore) Delete(ctx context.Context, collection string, id string) error {
	return nil
}

func (f *fakeStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, filter)
	kept := f.points[:0]
	for _, p := range f.points {
		if !payloadMatches(p.Metadata, filter) {
			kept = append(kept, p)
		}
	}
	f.points = kept
	return nil
}

func payloadMatches(payload, filter map[string]interface{}) bool {
	for key, want := range filter {
		if payload[key] != want {
			return false
		}
	}
	return true
}

func (f *fakeStore) DeleteCollection(ctx context.Context, collection string) error {
	return nil
}

func (f *fakeStore) Close() error { return nil }

type fakeKV struct {
	mu        sync.Mutex
	hashes    map[string]string
	metadata  map[string]kvstore.FileMetadata
	languages map[string]int
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		hashes:    make(map[string]string),
		metadata:  make(map[string]kvstore.FileMetadata),
		languages: make(map[string]int),
	}
}

func (f *fakeKV) LookupFileHash(ctx context.Context, fileHash string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.hashes[fileHash]
	return path, ok, nil
}

func (f *fakeKV) StoreFileHash(ctx context.Context, fileHash, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[fileHash] = path
	return nil
}

func (f *fakeKV) DeleteFileHash(ctx context.Context, fileHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, fileHash)
	return nil
}

func (f *fakeKV) AllFileHashes(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes))
	for k, v := range f.hashes {
		out[k] = v
	}
	return out, nil
}

func (f *fakeKV) StoreFileMetadata(ctx context.Context, fileHash string, md kvstore.FileMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[fileHash] = md
	return nil
}

func (f *fakeKV) DeleteFileMetadata(ctx context.Context, fileHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.metadata, fileHash)
	return nil
}

func (f *fakeKV) IncrementLanguage(ctx context.Context, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.languages[language]++
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeStore, *fakeKV, *config.StorageConfig) {
	t.Helper()
	base := t.TempDir()
	storage := &config.StorageConfig{
		IncomingDir: filepath.Join(base, "incoming"),
		SortedDir:   filepath.Join(base, "sorted"),
	}
	if err := os.MkdirAll(storage.IncomingDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ingestCfg := &config.IngestConfig{}
	ingestCfg.SetDefaults()
	classifierCfg := &config.ClassifierConfig{LLMFallback: config.BoolPtr(false)}
	classifierCfg.SetDefaults()

	store := &fakeStore{}
	kv := newFakeKV()

	pipeline := NewPipeline(
		storage,
		"documents",
		extractors.NewService(),
		classifier.New(classifierCfg),
		chunker.New(ingestCfg),
		&fakeEmbedder{},
		store,
		kv,
	)
	return pipeline, store, kv, storage
}

func dropFile(t *testing.T, storage *config.StorageConfig, name, content string) string {
	t.Helper()
	path := filepath.Join(storage.IncomingDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcess_SortsAndIndexes(t *testing.T) {
	pipeline, store, kv, storage := newTestPipeline(t)

	text := "Invoice payment gst details. The invoice total is due with applicable gst charges listed per line item for the billing period."
	path := dropFile(t, storage, "invoice_march.txt", text)

	result, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Domain != "Finance" || result.Category != "Tax" {
		t.Errorf("Expected Finance/Tax, got %s/%s", result.Domain, result.Category)
	}
	if !strings.HasPrefix(result.SortedPath, "Finance/Tax/txt/") {
		t.Errorf("Unexpected sorted path %q", result.SortedPath)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Incoming file should be moved out")
	}
	destPath := filepath.Join(storage.SortedDir, filepath.FromSlash(result.SortedPath))
	if _, err := os.Stat(destPath); err != nil {
		t.Errorf("Sorted file missing: %v", err)
	}

	if len(store.points) == 0 {
		t.Fatal("Expected chunks in the index")
	}
	payload := store.points[0].Metadata
	if payload["filename"] != "invoice_march.txt" || payload["domain"] != "Finance" {
		t.Errorf("Unexpected payload %v", payload)
	}

	if len(kv.hashes) != 1 {
		t.Errorf("Expected one recorded file hash, got %d", len(kv.hashes))
	}
	for hash, md := range kv.metadata {
		if md.ChunksCount != result.Chunks || md.FileHash != hash {
			t.Errorf("Metadata mismatch: %+v", md)
		}
	}
}

func TestProcess_DeterministicChunkIDs(t *testing.T) {
	if chunkID("abc", 0) != chunkID("abc", 0) {
		t.Error("Chunk IDs must be deterministic")
	}
	if chunkID("abc", 0) == chunkID("abc", 1) {
		t.Error("Different chunk indexes must map to different IDs")
	}
	if chunkID("abc", 0) == chunkID("abd", 0) {
		t.Error("Different files must map to different IDs")
	}
}

func TestProcess_OverwriteDropsStaleChunks(t *testing.T) {
	pipeline, store, _, storage := newTestPipeline(t)

	text := "Invoice payment gst details for the quarterly filing. The gst invoice covers all taxable items and payment terms."
	path := dropFile(t, storage, "invoice.txt", text)
	first, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	path = dropFile(t, storage, "invoice.txt", text+" Updated totals included.")
	second, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}

	if second.SortedPath != first.SortedPath {
		t.Errorf("Overwrite should keep the path, got %q then %q", first.SortedPath, second.SortedPath)
	}
	if len(store.deletes) != 1 {
		t.Fatalf("Expected one stale-chunk delete, got %d", len(store.deletes))
	}
	destPath := filepath.Join(storage.SortedDir, filepath.FromSlash(first.SortedPath))
	if store.deletes[0]["filepath"] != destPath {
		t.Errorf("Delete filter targets %v, want %v", store.deletes[0]["filepath"], destPath)
	}
}

func TestProcess_MissingFile(t *testing.T) {
	pipeline, _, _, storage := newTestPipeline(t)

	_, err := pipeline.Process(context.Background(), filepath.Join(storage.IncomingDir, "ghost.txt"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPrune(t *testing.T) {
	pipeline, store, kv, storage := newTestPipeline(t)

	text := "Prescription dosage for the patient treatment plan. The doctor adjusted the dosage after the diagnosis was confirmed."
	path := dropFile(t, storage, "rx.txt", text)
	result, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	destPath := filepath.Join(storage.SortedDir, filepath.FromSlash(result.SortedPath))
	if err := os.Remove(destPath); err != nil {
		t.Fatal(err)
	}

	pruned, err := pipeline.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned file, got %d", pruned)
	}
	if len(kv.hashes) != 0 || len(kv.metadata) != 0 {
		t.Error("Prune must drop the hash and metadata entries")
	}
	if len(store.deletes) == 0 {
		t.Error("Prune must delete the file's chunks")
	}

	// Nothing left to prune on the second sweep.
	pruned, _ = pipeline.Prune(context.Background())
	if pruned != 0 {
		t.Errorf("Second sweep should prune nothing, got %d", pruned)
	}
}

func TestPrune_SweepsUntrackedChunks(t *testing.T) {
	pipeline, store, kv, storage := newTestPipeline(t)

	text := "Prescription dosage for the patient treatment plan. The doctor adjusted the dosage after the diagnosis was confirmed."
	path := dropFile(t, storage, "rx.txt", text)
	result, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// Chunks indexed but the hash record lost, as after a failed Redis write.
	kv.mu.Lock()
	kv.hashes = make(map[string]string)
	kv.mu.Unlock()

	destPath := filepath.Join(storage.SortedDir, filepath.FromSlash(result.SortedPath))
	if err := os.Remove(destPath); err != nil {
		t.Fatal(err)
	}

	pruned, err := pipeline.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned file, got %d", pruned)
	}
	if len(store.points) != 0 {
		t.Errorf("Orphaned chunks should be swept, %d left", len(store.points))
	}
}

func TestPrune_KeepsUntrackedChunksWhileFileExists(t *testing.T) {
	pipeline, store, kv, storage := newTestPipeline(t)

	text := "Prescription dosage for the patient treatment plan. The doctor adjusted the dosage after the diagnosis was confirmed."
	path := dropFile(t, storage, "rx.txt", text)
	if _, err := pipeline.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	kv.mu.Lock()
	kv.hashes = make(map[string]string)
	kv.mu.Unlock()

	pruned, err := pipeline.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 0 {
		t.Errorf("Chunks of a present file must survive the sweep, pruned %d", pruned)
	}
	if len(store.points) == 0 {
		t.Error("Chunks should still be indexed")
	}
}

func TestProcess_DuplicateContentProcessedAnyway(t *testing.T) {
	pipeline, store, _, storage := newTestPipeline(t)

	text := "Invoice payment gst details for the quarterly filing. The gst invoice covers all taxable items and payment terms."
	path := dropFile(t, storage, "invoice.txt", text)
	first, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.Duplicate {
		t.Error("First copy must not be flagged as duplicate")
	}

	path = dropFile(t, storage, "invoice_copy.txt", text)
	second, err := pipeline.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}

	if !second.Duplicate {
		t.Error("Second copy should be flagged as duplicate")
	}
	if second.Chunks == 0 {
		t.Error("Duplicates are still chunked and indexed")
	}
	if store.upserted != 2 {
		t.Errorf("Expected both copies upserted, got %d upserts", store.upserted)
	}
}

func TestPool_Enqueue(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)
	cfg := &config.IngestConfig{QueueSize: 1}
	cfg.SetDefaults()
	pool := NewPool(pipeline, cfg)

	if !pool.Enqueue("/tmp/a.txt") {
		t.Error("First enqueue should succeed")
	}
	if pool.Enqueue("/tmp/a.txt") {
		t.Error("Duplicate enqueue should be rejected")
	}
	if pool.Enqueue("/tmp/b.txt") {
		t.Error("Enqueue beyond capacity should be rejected")
	}
}
