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

	"github.com/documind/documind/pkg/analytics"
	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/authstore"
	"github.com/documind/documind/pkg/categories"
	"github.com/documind/documind/pkg/chats"
	"github.com/documind/documind/pkg/chunker"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/duplicates"
	"github.com/documind/documind/pkg/embedders"
	"github.com/documind/documind/pkg/extractors"
	"github.com/documind/documind/pkg/ingest"
	"github.com/documind/documind/pkg/kvstore"
	"github.com/documind/documind/pkg/llms"
	"github.com/documind/documind/pkg/query"
	"github.com/documind/documind/pkg/rbac"
	"github.com/documind/documind/pkg/reranker"
	"github.com/documind/documind/pkg/server"
	"github.com/documind/documind/pkg/uploads"
	"github.com/documind/documind/pkg/vectordb"
	"github.com/documind/documind/pkg/watcher"
)

// ServeCmd starts the full service: watcher, ingest workers, and HTTP API.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

// classifierLLM narrows the generation client to the single-prompt shape
// the classifier fallback needs.
type classifierLLM struct {
	llm llms.Generator
}

func (g classifierLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return g.llm.Generate(ctx, prompt)
}

func (c *ServeCmd) Run(cli *CLI) error {
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
	if c.Port != 0 {
		cfg.Server.Port = c.Port
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
		slog.Warn("Redis unreachable, caching and duplicate tracking degraded",
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

	engine := query.NewEngine(
		&cfg.Query,
		cfg.Qdrant.Collection,
		embedder,
		store,
		llm,
		reranker.FromConfig(&cfg.Reranker),
		rbac.NewPolicy(users),
	)

	chatStore, err := chats.Open(cfg.Storage.ChatsDir)
	if err != nil {
		return fmt.Errorf("failed to open chat store: %w", err)
	}

	srv, err := server.New(server.Options{
		Config:     cfg,
		Auth:       auth.NewService(&cfg.Auth),
		Users:      users,
		Uploads:    tracker,
		Engine:     engine,
		Classifier: cls,
		Chats:      chatStore,
		Analytics:  analytics.New(cfg.Storage.SortedDir, kv),
		Duplicates: duplicates.New(cfg.Storage.SortedDir, kv, pipeline.DeleteByPath),
		Categories: categories.New(kv),
		Deindexer:  pipeline,
		Store:      store,
		Collection: cfg.Qdrant.Collection,
		LLM:        llm,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Printf("\nDocuMind server ready\n")
	fmt.Printf("   API:       http://%s\n", cfg.Server.Address())
	fmt.Printf("   Health:    http://%s/test\n", cfg.Server.Address())
	fmt.Printf("   Metrics:   http://%s/metrics\n", cfg.Server.Address())
	fmt.Printf("   Incoming:  %s\n", cfg.Storage.IncomingDir)
	fmt.Printf("   Sorted:    %s\n", cfg.Storage.SortedDir)
	fmt.Println("\nPress Ctrl+C to stop")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return dropWatcher.Run(ctx) })
	g.Go(func() error { return srv.Start(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		slog.Info("No config file given, using defaults")
		return config.Default(), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath)
	return cfg, nil
}
