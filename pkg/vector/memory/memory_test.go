package memory_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/vector"
	"github.com/quarryhq/quarry/pkg/vector/memory"
)

var _ = Describe("Driver", func() {
	var (
		driver *memory.Driver
		ctx    context.Context
	)

	entry := func(id, docID string, idx int, emb []float32) vector.Entry {
		return vector.Entry{
			ID:         id,
			DocumentID: docID,
			ChunkIndex: idx,
			Text:       "text for " + id,
			Embedding:  emb,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = memory.NewDriver(memory.Config{Dimensions: 3}, zap.NewNop())
	})

	It("implements vector.Driver", func() {
		var _ vector.Driver = (*memory.Driver)(nil)
	})

	Describe("Upsert", func() {
		It("does nothing for an empty batch", func() {
			Expect(driver.Upsert(ctx, nil)).To(Succeed())
		})

		It("stores entries and counts them", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0, 0}),
				entry("d1_1", "d1", 1, []float32{0, 1, 0}),
			})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("replaces an entry with the same ID", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0, 0}),
			})).To(Succeed())
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{0, 1, 0}),
			})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			matches, err := driver.Query(ctx, []float32{0, 1, 0}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].Score).To(BeNumerically("~", 1.0, 1e-5))
		})

		It("rejects mismatched dimensions", func() {
			err := driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0}),
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0, 0}),
				entry("d1_1", "d1", 1, []float32{0.9, 0.1, 0}),
				entry("d2_0", "d2", 0, []float32{0, 0, 1}),
			})).To(Succeed())
		})

		It("returns matches ordered by cosine similarity", func() {
			matches, err := driver.Query(ctx, []float32{1, 0, 0}, 3, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(matches[0].ID).To(Equal("d1_0"))
			Expect(matches[1].ID).To(Equal("d1_1"))
			Expect(matches[0].Score).To(BeNumerically(">", matches[1].Score))
			Expect(matches[1].Score).To(BeNumerically(">", matches[2].Score))
		})

		It("breaks score ties by insertion order, stable across repeated queries", func() {
			tied := memory.NewDriver(memory.Config{Dimensions: 3}, zap.NewNop())
			for i := 0; i < 20; i++ {
				Expect(tied.Upsert(ctx, []vector.Entry{
					entry(fmt.Sprintf("d1_%d", i), "d1", i, []float32{1, 0, 0}),
				})).To(Succeed())
			}

			first, err := tied.Query(ctx, []float32{1, 0, 0}, 20, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(HaveLen(20))
			for i, m := range first {
				Expect(m.ID).To(Equal(fmt.Sprintf("d1_%d", i)))
			}

			for run := 0; run < 10; run++ {
				again, err := tied.Query(ctx, []float32{1, 0, 0}, 20, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(first))
			}
		})

		It("keeps a re-upserted entry's position in the insertion order", func() {
			tied := memory.NewDriver(memory.Config{Dimensions: 3}, zap.NewNop())
			Expect(tied.Upsert(ctx, []vector.Entry{
				entry("a_0", "a", 0, []float32{1, 0, 0}),
				entry("b_0", "b", 0, []float32{1, 0, 0}),
			})).To(Succeed())
			Expect(tied.Upsert(ctx, []vector.Entry{
				entry("a_0", "a", 0, []float32{1, 0, 0}),
			})).To(Succeed())

			matches, err := tied.Query(ctx, []float32{1, 0, 0}, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].ID).To(Equal("a_0"))
			Expect(matches[1].ID).To(Equal("b_0"))
		})

		It("caps results at topK", func() {
			matches, err := driver.Query(ctx, []float32{1, 0, 0}, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})

		It("rejects mismatched query dimensions", func() {
			_, err := driver.Query(ctx, []float32{1, 0}, 3, nil)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("applies metadata filters", func() {
			filtered := vector.Entry{
				ID:         "d3_0",
				DocumentID: "d3",
				Text:       "filtered",
				Metadata:   map[string]string{"document_type": "report"},
				Embedding:  []float32{0.5, 0.5, 0},
			}
			Expect(driver.Upsert(ctx, []vector.Entry{filtered})).To(Succeed())

			matches, err := driver.Query(ctx, []float32{1, 0, 0}, 10,
				map[string]string{"document_type": "report"})
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].ID).To(Equal("d3_0"))
		})
	})

	Describe("DeleteByDocument", func() {
		It("removes only the document's entries", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0, 0}),
				entry("d1_1", "d1", 1, []float32{0, 1, 0}),
				entry("d2_0", "d2", 0, []float32{0, 0, 1}),
			})).To(Succeed())

			Expect(driver.DeleteByDocument(ctx, "d1")).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			matches, err := driver.Query(ctx, []float32{0, 0, 1}, 10, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].DocumentID).To(Equal("d2"))
		})
	})

	Describe("Clear", func() {
		It("removes all entries", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				entry("d1_0", "d1", 0, []float32{1, 0, 0}),
			})).To(Succeed())

			Expect(driver.Clear(ctx)).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})
	})
})
