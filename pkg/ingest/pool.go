package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/metrics"
)

// Pool fans incoming files out to concurrent pipeline workers.
type Pool struct {
	pipeline *Pipeline
	cfg      *config.IngestConfig
	queue    chan string
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewPool builds a worker pool over the pipeline.
func NewPool(pipeline *Pipeline, cfg *config.IngestConfig) *Pool {
	if cfg == nil {
		cfg = &config.IngestConfig{}
		cfg.SetDefaults()
	}
	return &Pool{
		pipeline: pipeline,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		pending:  make(map[string]struct{}),
		logger:   slog.Default().With("component", "ingest-pool"),
	}
}

// Enqueue queues a file for processing. Returns false when the queue is
// full or the file is already queued.
func (p *Pool) Enqueue(path string) bool {
	p.mu.Lock()
	if _, queued := p.pending[path]; queued {
		p.mu.Unlock()
		return false
	}
	p.pending[path] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- path:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		p.mu.Lock()
		delete(p.pending, path)
		p.mu.Unlock()
		p.logger.Warn("Ingest queue full, dropping file", "path", path)
		return false
	}
}

// Run processes queued files until the context is canceled. A background
// ticker prunes index entries for files removed from the sorted tree.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(p.cfg.PruneInterval.Duration())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if pruned, err := p.pipeline.Prune(ctx); err != nil {
					p.logger.Warn("Prune sweep failed", "error", err)
				} else if pruned > 0 {
					p.logger.Info("Pruned removed files", "count", pruned)
				}
			}
		}
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))

			result, err := p.pipeline.Process(ctx, path)
			p.mu.Lock()
			delete(p.pending, path)
			p.mu.Unlock()

			if err != nil {
				p.logger.Error("Failed to process file", "path", path, "error", err)
				continue
			}
			p.logger.Info("Processed file",
				"file", result.Filename,
				"domain", result.Domain,
				"category", result.Category,
				"chunks", result.Chunks)
		}
	}
}
