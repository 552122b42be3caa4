package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/documind/documind/pkg/authstore"
	"github.com/documind/documind/pkg/chunker"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/embedders"
	"github.com/documind/documind/pkg/extractors"
	"github.com/documind/documind/pkg/ingest"
	"github.com/documind/documind/pkg/kvstore"
	"github.com/documind/documind/pkg/llms"
	"github.com/documind/documind/pkg/uploads"
	"github.com/documind/documind/pkg/vectordb"
	"github.com/documind/documind/pkg/watcher"
)

// WatchCmd runs the drop-dir watcher and ingestion workers without the API.
// Useful when the HTTP server runs in a separate process.
type WatchCmd struct{}

func (c *WatchCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	users, err := authstore.Open(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to open auth store: %w", err)
	}
	defer users.Close()

	tracker, err := uploads.New(users.DB(), cfg.Uploads.MaxFilesPerUser, cfg.Uploads.MaxFileSizeMB)
	if err != nil {
		return fmt.Errorf("failed to open upload tracker: %w", err)
	}

	kv := kvstore.New(&cfg.Redis)
	defer kv.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := kv.Ping(pingCtx); err != nil {
		slog.Warn("Redis unreachable, duplicate tracking degraded",
			"addr", cfg.Redis.Addr, "error", err)
	}
	pingCancel()

	store, err := vectordb.NewQdrantProvider(&cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	defer store.Close()
	if err := store.CreateCollection(ctx, cfg.Qdrant.Collection, cfg.Qdrant.VectorSize); err != nil {
		slog.Warn("Failed to ensure vector collection", "collection", cfg.Qdrant.Collection, "error", err)
	}

	embedder, err := embedders.NewOllamaEmbedder(&cfg.Ollama)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	llm, err := llms.NewOllamaLLM(&cfg.Ollama)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}
	defer llm.Close()

	cls := classifier.New(&cfg.Classifier,
		classifier.WithLLM(classifierLLM{llm: llm}),
		classifier.WithCategorySource(kv),
	)

	pipeline := ingest.NewPipeline(
		&cfg.Storage,
		cfg.Qdrant.Collection,
		extractors.NewService(),
		cls,
		chunker.New(&cfg.Ingest),
		embedder,
		store,
		kv,
		ingest.WithUploadTracker(tracker),
	)
	pool := ingest.NewPool(pipeline, &cfg.Ingest)

	dropWatcher := watcher.New(&cfg.Storage, &cfg.Ingest, pool,
		watcher.WithCleanup(func(path string) {
			if err := pipeline.CleanupRemoved(ctx, path); err != nil {
				slog.Warn("Failed to clean up removed file", "path", path, "error", err)
			}
		}),
	)

	slog.Info("Watching for documents",
		"incoming", cfg.Storage.IncomingDir,
		"sorted", cfg.Storage.SortedDir,
		"workers", cfg.Ingest.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return dropWatcher.Run(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
