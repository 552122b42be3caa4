// Package watcher feeds the ingest pool from the incoming drop directory.
//
// New files must sit still for a settle delay before being queued, so
// partially copied files are never ingested. A startup scan picks up files
// dropped while the service was down.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/documind/documind/pkg/config"
)

// skippedExtensions are never ingested.
var skippedExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".pyd": true,
	".so": true, ".dll": true, ".exe": true,
	".sh": true, ".bat": true,
}

// skippedNames are infrastructure files that may land in the drop directory.
var skippedNames = map[string]bool{
	"index.html":           true,
	"index_backup.html":    true,
	"index_backup_2.html":  true,
	".gitignore":           true,
	".env":                 true,
	"config.py":            true,
	"setup.py":             true,
	"requirements.txt":     true,
	"watcher.py":           true,
	"app.py":               true,
	"cleanup.py":           true,
}

// Enqueuer receives settled files, implemented by the ingest pool.
type Enqueuer interface {
	Enqueue(path string) bool
}

// Watcher monitors the incoming directory.
type Watcher struct {
	dir     string
	settle  time.Duration
	pool    Enqueuer
	cleanup func(path string)
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// Option configures the watcher.
type Option func(*Watcher)

// WithCleanup installs a callback for files removed before processing, so
// their index entries can be dropped.
func WithCleanup(fn func(path string)) Option {
	return func(w *Watcher) {
		w.cleanup = fn
	}
}

// New builds a watcher over the configured incoming directory.
func New(storage *config.StorageConfig, ingestCfg *config.IngestConfig, pool Enqueuer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:     storage.IncomingDir,
		settle:  ingestCfg.SettleDelay.Duration(),
		pool:    pool,
		pending: make(map[string]*time.Timer),
		logger:  slog.Default().With("component", "watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until the context is canceled. Files already present are
// queued immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	w.scanExisting()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(event.Name)
			}
			// Rename is the pipeline moving a file into the sorted
			// tree; only a true delete triggers cleanup.
			if event.Op&fsnotify.Remove != 0 {
				w.removed(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error", "error", err)
		}
	}
}

// scanExisting queues files dropped while the watcher was not running.
func (w *Watcher) scanExisting() {
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		w.schedule(path)
		return nil
	})
	if err != nil {
		w.logger.Warn("Startup scan failed", "error", err)
	}
}

// schedule (re)starts the settle timer for a file. Every write event
// pushes the deadline back so only quiescent files are ingested.
func (w *Watcher) schedule(path string) {
	if !w.shouldIngest(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.settled(path)
	})
}

func (w *Watcher) settled(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// Dropped directories get their files queued individually.
		filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			w.schedule(p)
			return nil
		})
		return
	}

	if w.pool.Enqueue(path) {
		w.logger.Info("Queued file", "file", filepath.Base(path))
	}
}

// removed cancels any pending settle timer and lets the pipeline drop
// whatever was indexed for the file.
func (w *Watcher) removed(path string) {
	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if w.cleanup != nil && w.shouldIngest(path) {
		w.cleanup(path)
	}
}

func (w *Watcher) shouldIngest(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if skippedNames[name] {
		return false
	}
	if skippedExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	return true
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
