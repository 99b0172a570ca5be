// Package worker provides a bounded background pool for document ingestion
// jobs so uploads return immediately while processing happens asynchronously.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/ingest"
)

const (
	defaultNumWorkers   = 3
	defaultJobQueueSize = 256
)

// Job is a unit of ingestion work: process one document by ID.
type Job struct {
	DocumentID string
}

// Pool processes ingestion jobs on background goroutines.
type Pool struct {
	processor *ingest.Processor
	logger    *zap.Logger
	queue     chan Job
	wg        sync.WaitGroup
}

// Config configures the worker pool.
type Config struct {
	Processor *ingest.Processor
	Logger    *zap.Logger

	// NumWorkers is the number of concurrent workers. Defaults to 3.
	NumWorkers int

	// QueueSize is the job queue buffer size. Defaults to 256.
	QueueSize int
}

// NewPool creates a worker pool and starts its workers.
func NewPool(c Config) *Pool {
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultJobQueueSize
	}

	p := &Pool{
		processor: c.Processor,
		logger:    c.Logger,
		queue:     make(chan Job, c.QueueSize),
	}

	for i := 0; i < c.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Enqueue submits a job without blocking. It returns false when the queue is
// full and the job was dropped; callers can retry or process synchronously.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Error("ingest queue full, dropping job",
			zap.String("document_id", job.DocumentID),
		)
		return false
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.queue {
		p.process(job)
	}
}

func (p *Pool) process(job Job) {
	ctx := context.Background()

	p.logger.Debug("processing ingest job",
		zap.String("document_id", job.DocumentID),
	)

	if err := p.processor.Process(ctx, job.DocumentID); err != nil {
		p.logger.Warn("ingest job failed",
			zap.String("document_id", job.DocumentID),
			zap.Error(err),
		)
	}
}
