package ingest_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/aiextract"
	"github.com/quarryhq/quarry/pkg/chunker"
	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/document/inmemory"
	"github.com/quarryhq/quarry/pkg/eventstream"
	"github.com/quarryhq/quarry/pkg/ingest"
	testutils "github.com/quarryhq/quarry/pkg/utils/test"
	"github.com/quarryhq/quarry/pkg/vector/memory"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentEvent
}

func (r *recordingPublisher) PublishDocument(_ context.Context, event *eventstream.DocumentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) all() []*eventstream.DocumentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.DocumentEvent(nil), r.events...)
}

// blockingEmbedder holds Embed until released, to exercise the in-flight
// guard.
type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	close(b.started)
	<-b.release
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (b *blockingEmbedder) Dimensions() uint { return 3 }
func (b *blockingEmbedder) Degraded() bool   { return false }
func (b *blockingEmbedder) Close() error     { return nil }

var _ = Describe("Processor", func() {
	var (
		store     *inmemory.Store
		driver    *memory.Driver
		embedder  *testutils.MockEmbedder
		publisher *recordingPublisher
		processor *ingest.Processor
		dir       string
		ctx       context.Context
	)

	writeDoc := func(name, content string) *document.Document {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		doc := document.New(name, name, path, int64(len(content)))
		Expect(store.Create(ctx, doc)).To(Succeed())
		return doc
	}

	newProcessor := func(c ingest.Config) *ingest.Processor {
		if c.Store == nil {
			c.Store = store
		}
		if c.Driver == nil {
			c.Driver = driver
		}
		if c.Embedder == nil {
			c.Embedder = embedder
		}
		if c.Chunker == nil {
			ch, err := chunker.NewChunker(chunker.Config{})
			Expect(err).NotTo(HaveOccurred())
			c.Chunker = ch
		}
		if c.Docs == nil {
			c.Docs = docproc.NewProcessor(docproc.Config{})
		}
		if c.Publisher == nil {
			c.Publisher = publisher
		}
		if c.Logger == nil {
			c.Logger = zap.NewNop()
		}
		return ingest.NewProcessor(c)
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		store = inmemory.NewStore()
		driver = memory.NewDriver(memory.Config{}, zap.NewNop())
		embedder = testutils.NewMockEmbedder()
		publisher = &recordingPublisher{}
		processor = newProcessor(ingest.Config{})
	})

	Describe("Process", func() {
		It("completes a document and indexes its chunks", func() {
			content := strings.Repeat("The committee approved the annual budget report. ", 60)
			doc := writeDoc("report.txt", content)

			Expect(processor.Process(ctx, doc.ID)).To(Succeed())

			got, err := store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(document.StatusCompleted))
			Expect(got.ChunkCount).To(BeNumerically(">", 1))
			Expect(got.MimeType).To(Equal("text/plain"))
			Expect(got.DocumentType).To(Equal(docproc.TypeReport))
			Expect(got.ProcessedDate).NotTo(BeNil())
			Expect(got.ErrorMessage).To(BeEmpty())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(got.ChunkCount))

			matches, err := driver.Query(ctx, []float32{0.1, 0.2, 0.3}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].DocumentID).To(Equal(doc.ID))
			Expect(matches[0].ID).To(Equal(fmt.Sprintf("%s_%d", doc.ID, matches[0].ChunkIndex)))
			Expect(matches[0].Metadata).To(HaveKeyWithValue("filename", "report.txt"))
			Expect(matches[0].Metadata).To(HaveKeyWithValue("document_type", docproc.TypeReport))
		})

		It("publishes a completed event", func() {
			doc := writeDoc("notes.txt", strings.Repeat("Plain notes about nothing in particular. ", 30))

			Expect(processor.Process(ctx, doc.ID)).To(Succeed())

			events := publisher.all()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeDocumentCompleted))
			Expect(events[0].DocumentID).To(Equal(doc.ID))
			Expect(events[0].Status).To(Equal(string(document.StatusCompleted)))
			Expect(events[0].ChunkCount).To(BeNumerically(">", 0))
			Expect(events[0].Error).To(BeEmpty())
		})

		It("completes with zero chunks when the text is below the minimum chunk size", func() {
			doc := writeDoc("tiny.txt", "A short note under the line.")

			Expect(processor.Process(ctx, doc.ID)).To(Succeed())

			got, err := store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(document.StatusCompleted))
			Expect(got.ChunkCount).To(BeZero())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("marks the document failed and increments the retry count on errors", func() {
			doc := document.New("gone.txt", "gone.txt", filepath.Join(dir, "gone.txt"), 1)
			Expect(store.Create(ctx, doc)).To(Succeed())

			Expect(processor.Process(ctx, doc.ID)).NotTo(Succeed())

			got, err := store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(document.StatusFailed))
			Expect(got.ErrorMessage).NotTo(BeEmpty())
			Expect(got.RetryCount).To(Equal(1))

			Expect(processor.Process(ctx, doc.ID)).NotTo(Succeed())

			got, err = store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.RetryCount).To(Equal(2))

			events := publisher.all()
			Expect(events).To(HaveLen(2))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeDocumentFailed))
			Expect(events[0].Error).NotTo(BeEmpty())
		})

		It("replaces existing chunks when a document is reprocessed", func() {
			doc := writeDoc("repeat.txt", strings.Repeat("Stable content that never changes shape. ", 40))

			Expect(processor.Process(ctx, doc.ID)).To(Succeed())
			first, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(processor.Process(ctx, doc.ID)).To(Succeed())
			second, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("rejects concurrent processing of the same document", func() {
			blocking := &blockingEmbedder{
				started: make(chan struct{}),
				release: make(chan struct{}),
			}
			p := newProcessor(ingest.Config{Embedder: blocking})
			doc := writeDoc("busy.txt", strings.Repeat("Something to embed slowly. ", 40))

			done := make(chan error, 1)
			go func() {
				done <- p.Process(ctx, doc.ID)
			}()

			Eventually(blocking.started).Should(BeClosed())
			Expect(p.Process(ctx, doc.ID)).To(MatchError(ingest.ErrAlreadyProcessing))

			close(blocking.release)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("merges extracted metadata into the document", func() {
			client := &testutils.MockLLMClient{
				Responses: []testutils.MockLLMResponse{
					{Content: `{"title": "Q3 Review", "date": "2026-03-01", "summary": "Quarterly results.", "report_type": "financial", "key_findings": ["up"], "period": "Q3"}`},
				},
			}
			extractor := aiextract.NewExtractor(client, aiextract.ExtractorConfig{}, zap.NewNop())
			p := newProcessor(ingest.Config{Extractor: extractor})

			doc := writeDoc("q3.txt", strings.Repeat("Quarterly report with analysis of results. ", 30))

			Expect(p.Process(ctx, doc.ID)).To(Succeed())

			got, err := store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Metadata).To(HaveKeyWithValue("title", "Q3 Review"))
			Expect(got.Metadata).To(HaveKeyWithValue("date", "2026-03-01"))
		})
	})

	Describe("Delete", func() {
		It("removes the document and its chunks and emits a deleted event", func() {
			doc := writeDoc("doomed.txt", strings.Repeat("Text destined for removal shortly. ", 40))
			Expect(processor.Process(ctx, doc.ID)).To(Succeed())

			Expect(processor.Delete(ctx, doc.ID)).To(Succeed())

			_, err := store.Get(ctx, doc.ID)
			Expect(err).To(MatchError(document.ErrNotFound))

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			events := publisher.all()
			Expect(events[len(events)-1].EventType).To(Equal(eventstream.EventTypeDocumentDeleted))
		})

		It("returns not found for unknown documents", func() {
			Expect(processor.Delete(ctx, "missing")).To(MatchError(document.ErrNotFound))
		})
	})
})
