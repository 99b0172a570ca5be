// Package watcher ingests documents dropped into an inbox directory. New
// files are registered in the document store and handed to the ingest worker
// pool once writes settle.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/ingest/worker"
)

// DefaultSettleDelay is how long a file must be quiet before it is picked
// up. Editors and network copies emit bursts of write events.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher monitors an inbox directory and enqueues ingestion jobs.
type Watcher struct {
	dir         string
	store       document.Store
	pool        *worker.Pool
	logger      *zap.Logger
	settleDelay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	known   map[string]bool
}

// Config configures the inbox watcher.
type Config struct {
	// Dir is the inbox directory to watch. It is created if missing.
	Dir string

	Store  document.Store
	Pool   *worker.Pool
	Logger *zap.Logger

	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration
}

// New creates an inbox watcher.
func New(c Config) (*Watcher, error) {
	if c.Dir == "" {
		return nil, fmt.Errorf("watcher: inbox directory is required")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}

	delay := c.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}

	return &Watcher{
		dir:         c.Dir,
		store:       c.Store,
		pool:        c.Pool,
		logger:      c.Logger,
		settleDelay: delay,
		pending:     make(map[string]*time.Timer),
		known:       make(map[string]bool),
	}, nil
}

// Run scans the inbox for existing files, then watches for new ones until
// the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching inbox %s: %w", w.dir, err)
	}

	if err := w.scan(ctx); err != nil {
		return err
	}

	w.logger.Info("watching inbox",
		zap.String("dir", w.dir),
	)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

// scan registers supported files already sitting in the inbox. Paths the
// store already tracks are skipped.
func (w *Watcher) scan(ctx context.Context) error {
	docs, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	w.mu.Lock()
	for _, d := range docs {
		w.known[d.FilePath] = true
	}
	w.mu.Unlock()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scanning inbox %s: %w", w.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.ingest(ctx, filepath.Join(w.dir, entry.Name()))
	}

	return nil
}

// schedule delays ingestion until the file has been quiet for the settle
// window. Repeated events reset the timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !docproc.Supported(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

// ingest registers the file and enqueues its processing job.
func (w *Watcher) ingest(ctx context.Context, path string) {
	if !docproc.Supported(path) {
		return
	}

	w.mu.Lock()
	seen := w.known[path]
	w.known[path] = true
	w.mu.Unlock()
	if seen {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	name := filepath.Base(path)
	doc := document.New(name, name, path, info.Size())
	if err := w.store.Create(ctx, doc); err != nil {
		w.logger.Error("failed to register inbox document",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("inbox document registered",
		zap.String("document_id", doc.ID),
		zap.String("path", path),
	)

	if !w.pool.Enqueue(worker.Job{DocumentID: doc.ID}) {
		w.logger.Warn("inbox document not enqueued, queue full",
			zap.String("document_id", doc.ID),
		)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
