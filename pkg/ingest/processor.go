// Package ingest drives the document processing pipeline: extraction,
// classification, chunking, embedding, and indexing, with lifecycle status
// tracking on the document store.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/aiextract"
	"github.com/quarryhq/quarry/pkg/chunker"
	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/embeddings"
	"github.com/quarryhq/quarry/pkg/eventstream"
	"github.com/quarryhq/quarry/pkg/vector"
)

// ErrAlreadyProcessing is returned when a document is being processed by
// another caller.
var ErrAlreadyProcessing = fmt.Errorf("document is already being processed")

// Processor runs the full ingestion pipeline for one document at a time,
// guarding each document against concurrent processing.
type Processor struct {
	store     document.Store
	driver    vector.Driver
	embedder  embeddings.Embedder
	chunker   *chunker.Chunker
	docs      *docproc.Processor
	extractor *aiextract.Extractor
	publisher eventstream.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// Config wires the pipeline dependencies.
type Config struct {
	Store    document.Store
	Driver   vector.Driver
	Embedder embeddings.Embedder
	Chunker  *chunker.Chunker
	Docs     *docproc.Processor

	// Extractor is optional; when set, structured metadata is extracted
	// after classification. Extraction failures do not fail ingestion.
	Extractor *aiextract.Extractor

	// Publisher is optional; nil disables lifecycle events.
	Publisher eventstream.Publisher

	Logger *zap.Logger
}

// NewProcessor creates an ingestion processor.
func NewProcessor(c Config) *Processor {
	return &Processor{
		store:     c.Store,
		driver:    c.Driver,
		embedder:  c.Embedder,
		chunker:   c.Chunker,
		docs:      c.Docs,
		extractor: c.Extractor,
		publisher: c.Publisher,
		logger:    c.Logger,
		inFlight:  make(map[string]bool),
	}
}

// Process runs the pipeline for the document: extract text, classify,
// chunk, embed, and index. The document moves pending/failed -> processing
// -> completed or failed. Reprocessing a document overwrites its chunks via
// idempotent chunk IDs.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	if !p.acquire(documentID) {
		return ErrAlreadyProcessing
	}
	defer p.release(documentID)

	doc, err := p.store.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", documentID, err)
	}

	doc.Status = document.StatusProcessing
	doc.ErrorMessage = ""
	if err := p.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("marking document %s processing: %w", documentID, err)
	}

	if err := p.run(ctx, doc); err != nil {
		p.fail(ctx, doc, err)
		return err
	}

	return nil
}

// run performs the pipeline stages against a document already marked
// processing.
func (p *Processor) run(ctx context.Context, doc *document.Document) error {
	text, mimeType, err := p.docs.ProcessFile(doc.FilePath)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}
	doc.MimeType = mimeType
	doc.DocumentType = docproc.DetectDocumentType(text, doc.OriginalFilename)

	if p.extractor != nil {
		p.extractMetadata(ctx, doc, text)
	}

	chunkMeta := map[string]string{
		"filename":      doc.OriginalFilename,
		"document_type": doc.DocumentType,
	}
	chunks := p.chunker.Chunk(text, chunkMeta)

	if len(chunks) == 0 {
		p.logger.Warn("document produced no chunks",
			zap.String("document_id", doc.ID),
			zap.Int("text_length", len(text)),
		)
	} else {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}

		entries := make([]vector.Entry, len(chunks))
		for i, c := range chunks {
			entries[i] = vector.Entry{
				ID:         fmt.Sprintf("%s_%d", doc.ID, c.Index),
				DocumentID: doc.ID,
				ChunkIndex: c.Index,
				Text:       c.Text,
				Metadata:   c.Metadata,
				Embedding:  vecs[i],
			}
		}

		if err := p.driver.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("indexing chunks: %w", err)
		}
	}

	now := time.Now().UTC()
	doc.Status = document.StatusCompleted
	doc.ChunkCount = len(chunks)
	doc.ProcessedDate = &now
	if err := p.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("marking document %s completed: %w", doc.ID, err)
	}

	p.logger.Info("document processed",
		zap.String("document_id", doc.ID),
		zap.String("document_type", doc.DocumentType),
		zap.Int("chunks", len(chunks)),
		zap.Bool("degraded_embeddings", p.embedder.Degraded()),
	)

	p.publish(ctx, doc, eventstream.EventTypeDocumentCompleted, "")
	return nil
}

// Delete removes a document's chunks and record, then emits a deleted event.
func (p *Processor) Delete(ctx context.Context, documentID string) error {
	doc, err := p.store.Get(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.driver.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", documentID, err)
	}

	if err := p.store.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}

	p.publish(ctx, doc, eventstream.EventTypeDocumentDeleted, "")

	p.logger.Info("document deleted",
		zap.String("document_id", documentID),
	)

	return nil
}

// extractMetadata merges LLM-extracted fields into the document metadata.
// Failures are logged and skipped so ingestion still completes.
func (p *Processor) extractMetadata(ctx context.Context, doc *document.Document, text string) {
	extracted, err := p.extractor.Extract(ctx, text, doc.DocumentType, nil)
	if err != nil {
		p.logger.Warn("metadata extraction failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	for k, v := range extracted {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			doc.Metadata[k] = s
			continue
		}
		doc.Metadata[k] = fmt.Sprintf("%v", v)
	}
}

// fail records the failure on the document and emits a failed event.
func (p *Processor) fail(ctx context.Context, doc *document.Document, cause error) {
	doc.Status = document.StatusFailed
	doc.ErrorMessage = cause.Error()
	doc.RetryCount++

	if err := p.store.Update(ctx, doc); err != nil {
		p.logger.Error("failed to record document failure",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}

	p.logger.Warn("document processing failed",
		zap.String("document_id", doc.ID),
		zap.Int("retry_count", doc.RetryCount),
		zap.Error(cause),
	)

	p.publish(ctx, doc, eventstream.EventTypeDocumentFailed, cause.Error())
}

func (p *Processor) publish(ctx context.Context, doc *document.Document, eventType, errMsg string) {
	if p.publisher == nil {
		return
	}

	event := eventstream.NewDocumentEvent(eventType, doc.ID)
	event.Filename = doc.OriginalFilename
	event.Status = string(doc.Status)
	event.ChunkCount = doc.ChunkCount
	event.Error = errMsg

	if err := p.publisher.PublishDocument(ctx, event); err != nil {
		p.logger.Warn("failed to publish document event",
			zap.String("event_type", eventType),
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
}

func (p *Processor) acquire(documentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[documentID] {
		return false
	}
	p.inFlight[documentID] = true
	return true
}

func (p *Processor) release(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, documentID)
}
