package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/document/inmemory"
)

var _ = Describe("Store", func() {
	var (
		store *inmemory.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = inmemory.NewStore()
		ctx = context.Background()
	})

	It("creates and fetches a document", func() {
		doc := document.New("abc.txt", "report.txt", "/tmp/abc.txt", 42)
		Expect(store.Create(ctx, doc)).To(Succeed())

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.OriginalFilename).To(Equal("report.txt"))
		Expect(got.Status).To(Equal(document.StatusPending))
		Expect(got.RetryCount).To(BeZero())
	})

	It("returns ErrNotFound for unknown IDs", func() {
		_, err := store.Get(ctx, "nope")
		Expect(err).To(MatchError(document.ErrNotFound))

		Expect(store.Update(ctx, &document.Document{ID: "nope"})).To(MatchError(document.ErrNotFound))
		Expect(store.Delete(ctx, "nope")).To(MatchError(document.ErrNotFound))
	})

	It("lists documents newest first", func() {
		older := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		older.UploadDate = time.Now().Add(-time.Hour)
		newer := document.New("b.txt", "b.txt", "/tmp/b.txt", 1)

		Expect(store.Create(ctx, older)).To(Succeed())
		Expect(store.Create(ctx, newer)).To(Succeed())

		docs, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
		Expect(docs[0].ID).To(Equal(newer.ID))
		Expect(docs[1].ID).To(Equal(older.ID))
	})

	It("updates lifecycle fields", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())

		now := time.Now().UTC()
		doc.Status = document.StatusCompleted
		doc.ChunkCount = 7
		doc.ProcessedDate = &now
		Expect(store.Update(ctx, doc)).To(Succeed())

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(document.StatusCompleted))
		Expect(got.ChunkCount).To(Equal(7))
		Expect(got.ProcessedDate).NotTo(BeNil())
	})

	It("deletes documents", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())
		Expect(store.Delete(ctx, doc.ID)).To(Succeed())

		_, err := store.Get(ctx, doc.ID)
		Expect(err).To(MatchError(document.ErrNotFound))
	})

	It("counts documents by status", func() {
		a := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		b := document.New("b.txt", "b.txt", "/tmp/b.txt", 1)
		b.Status = document.StatusFailed

		Expect(store.Create(ctx, a)).To(Succeed())
		Expect(store.Create(ctx, b)).To(Succeed())

		counts, err := store.CountByStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts[document.StatusPending]).To(Equal(1))
		Expect(counts[document.StatusFailed]).To(Equal(1))
	})

	It("isolates stored records from caller mutation", func() {
		doc := document.New("a.txt", "a.txt", "/tmp/a.txt", 1)
		Expect(store.Create(ctx, doc)).To(Succeed())

		doc.OriginalFilename = "mutated.txt"

		got, err := store.Get(ctx, doc.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.OriginalFilename).To(Equal("a.txt"))
	})
})
