package sqlite_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/document/sqlite"
)

var _ = Describe("Store", func() {
	var (
		store *sqlite.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = sqlite.NewStore(":memory:", zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("requires a database path", func() {
		_, err := sqlite.NewStore("", zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("round-trips a document with metadata", func() {
		doc := document.New("abc.pdf", "report.pdf", "/data/abc.pdf", 4096)
		doc.MimeType = "application/pdf"
		doc.DocumentType = "report"
		doc.Metadata = map[string]string{"language": "zh-TW"}

		Expect(store.Create(ctx, doc)).To(Succeed())

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.OriginalFilename).To(Equal("report.pdf"))
		Expect(got.MimeType).To(Equal("application/pdf"))
		Expect(got.DocumentType).To(Equal("report"))
		Expect(got.Status).To(Equal(document.StatusPending))
		Expect(got.Metadata).To(HaveKeyWithValue("language", "zh-TW"))
		Expect(got.ProcessedDate).To(BeNil())
	})

	It("returns ErrNotFound for unknown IDs", func() {
		_, err := store.Get(ctx, "missing")
		Expect(err).To(MatchError(document.ErrNotFound))

		Expect(store.Delete(ctx, "missing")).To(MatchError(document.ErrNotFound))
	})

	It("updates lifecycle transitions", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())

		doc.Status = document.StatusProcessing
		Expect(store.Update(ctx, doc)).To(Succeed())

		now := time.Now().UTC()
		doc.Status = document.StatusCompleted
		doc.ChunkCount = 3
		doc.ProcessedDate = &now
		Expect(store.Update(ctx, doc)).To(Succeed())

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(document.StatusCompleted))
		Expect(got.ChunkCount).To(Equal(3))
		Expect(got.ProcessedDate).NotTo(BeNil())
	})

	It("records failures with retry counts", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())

		doc.Status = document.StatusFailed
		doc.ErrorMessage = "extraction failed"
		doc.RetryCount = 2
		Expect(store.Update(ctx, doc)).To(Succeed())

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ErrorMessage).To(Equal("extraction failed"))
		Expect(got.RetryCount).To(Equal(2))
	})

	It("lists newest first and counts by status", func() {
		older := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		older.UploadDate = time.Now().UTC().Add(-time.Hour)
		newer := document.New("b.txt", "b.txt", "/tmp/b.txt", 1)
		newer.Status = document.StatusCompleted

		Expect(store.Create(ctx, older)).To(Succeed())
		Expect(store.Create(ctx, newer)).To(Succeed())

		docs, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
		Expect(docs[0].ID).To(Equal(newer.ID))

		counts, err := store.CountByStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts[document.StatusPending]).To(Equal(1))
		Expect(counts[document.StatusCompleted]).To(Equal(1))
	})

	It("deletes documents", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())
		Expect(store.Delete(ctx, doc.ID)).To(Succeed())

		_, err := store.Get(ctx, doc.ID)
		Expect(err).To(MatchError(document.ErrNotFound))
	})
})
