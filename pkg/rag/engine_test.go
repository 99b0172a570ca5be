package rag_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/rag"
	testutils "github.com/quarryhq/quarry/pkg/utils/test"
	"github.com/quarryhq/quarry/pkg/vector"
	"github.com/quarryhq/quarry/pkg/vector/memory"
)

type staticResolver map[string]string

func (r staticResolver) Filename(_ context.Context, documentID string) (string, bool) {
	name, ok := r[documentID]
	return name, ok
}

var _ = Describe("Engine", func() {
	var (
		embedder *testutils.MockEmbedder
		driver   *memory.Driver
		client   *testutils.MockLLMClient
	)

	newEngine := func(cfg rag.EngineConfig) *rag.Engine {
		retriever := rag.NewRetriever(embedder, driver, 0, zap.NewNop())
		generator := rag.NewGenerator(client, rag.GeneratorConfig{
			RetryDelay: time.Millisecond,
		}, zap.NewNop())
		return rag.NewEngine(retriever, generator, cfg, zap.NewNop())
	}

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		driver = memory.NewDriver(memory.Config{Dimensions: 3}, zap.NewNop())
		client = &testutils.MockLLMClient{}
	})

	It("short-circuits with the no-information answer when nothing is retrieved", func() {
		result, err := newEngine(rag.EngineConfig{}).Query(context.Background(), "anything", 0, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Answer).To(Equal(rag.NoRelevantAnswer))
		Expect(result.Sources).To(BeEmpty())
		Expect(result.LLMTimeMs).To(BeZero())
		Expect(client.Calls()).To(BeZero())
	})

	Context("with indexed chunks", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(context.Background(), []vector.Entry{
				{
					ID:         "doc-1_0",
					DocumentID: "doc-1",
					ChunkIndex: 0,
					Text:       "quarry indexes documents",
					Metadata:   map[string]string{"document_type": "report"},
					Embedding:  []float32{0.1, 0.2, 0.3},
				},
				{
					ID:         "doc-2_0",
					DocumentID: "doc-2",
					ChunkIndex: 0,
					Text:       "unrelated text",
					Embedding:  []float32{-0.3, 0.1, -0.2},
				},
			})).To(Succeed())

			client.Responses = []testutils.MockLLMResponse{{Content: "grounded answer [Source 1]"}}
		})

		It("returns the generated answer with formatted sources", func() {
			result, err := newEngine(rag.EngineConfig{}).Query(context.Background(), "what does quarry do?", 1, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Answer).To(Equal("grounded answer [Source 1]"))
			Expect(result.Sources).To(HaveLen(1))

			src := result.Sources[0]
			Expect(src.DocumentID).To(Equal("doc-1"))
			Expect(src.Filename).To(Equal("doc-1"))
			Expect(src.ChunkIndex).To(Equal(0))
			Expect(src.Text).To(Equal("quarry indexes documents"))
			Expect(src.Score).To(BeNumerically("~", 1.0, 1e-3))
			Expect(src.Metadata).To(HaveKeyWithValue("document_type", "report"))
		})

		It("resolves display filenames through the resolver", func() {
			engine := newEngine(rag.EngineConfig{
				Resolver: staticResolver{"doc-1": "report.pdf"},
			})

			result, err := engine.Query(context.Background(), "question", 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Sources[0].Filename).To(Equal("report.pdf"))
		})

		It("passes metadata filters through to retrieval", func() {
			result, err := newEngine(rag.EngineConfig{}).Query(context.Background(), "question", 10,
				map[string]string{"document_type": "report"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Sources).To(HaveLen(1))
			Expect(result.Sources[0].DocumentID).To(Equal("doc-1"))
		})

		It("reports non-negative stage timings", func() {
			result, err := newEngine(rag.EngineConfig{}).Query(context.Background(), "question", 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RetrievalTimeMs).To(BeNumerically(">=", 0))
			Expect(result.LLMTimeMs).To(BeNumerically(">=", 0))
			Expect(result.TotalTimeMs).To(BeNumerically(">=", result.LLMTimeMs))
		})
	})
})
