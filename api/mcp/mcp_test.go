package mcp

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/document/inmemory"
	quarrylogger "github.com/quarryhq/quarry/pkg/logger"
	"github.com/quarryhq/quarry/pkg/rag"
	testutils "github.com/quarryhq/quarry/pkg/utils/test"
	"github.com/quarryhq/quarry/pkg/vector"
	"github.com/quarryhq/quarry/pkg/vector/memory"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Store
		driver *memory.Driver
		llmc   *testutils.MockLLMClient
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := quarrylogger.Nop()
		store = inmemory.NewStore()
		driver = memory.NewDriver(memory.Config{}, logger)
		embedder := testutils.NewMockEmbedder()
		llmc = &testutils.MockLLMClient{}

		retriever := rag.NewRetriever(embedder, driver, 0, logger)
		generator := rag.NewGenerator(llmc, rag.GeneratorConfig{}, logger)
		engine := rag.NewEngine(retriever, generator, rag.EngineConfig{}, logger)

		var err error
		server, err = NewServer(Config{
			Engine: engine,
			Store:  store,
			Logger: logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires an engine unless noop", func() {
			_, err := NewServer(Config{Store: store, Logger: quarrylogger.Nop()})
			Expect(err).To(HaveOccurred())
		})

		It("builds an empty server when noop", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})

		It("exposes an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("query_documents tool", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, []vector.Entry{{
				ID:         "doc-1_0",
				DocumentID: "doc-1",
				ChunkIndex: 0,
				Text:       strings.Repeat("Refund requests are handled within 30 days. ", 4),
				Embedding:  []float32{0.1, 0.2, 0.3},
			}})).To(Succeed())
		})

		It("answers a question with sources", func() {
			llmc.Responses = []testutils.MockLLMResponse{{Content: "退款於 30 天內處理。"}}

			result, output, err := server.handleQuery(ctx, nil, QueryInput{
				Query: "How long do refunds take?",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Answer).To(Equal("退款於 30 天內處理。"))
			Expect(output.Sources).To(HaveLen(1))
			Expect(output.Sources[0].DocumentID).To(Equal("doc-1"))
		})

		It("rejects empty queries", func() {
			result, _, err := server.handleQuery(ctx, nil, QueryInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("falls back when nothing matches the filter", func() {
			result, output, err := server.handleQuery(ctx, nil, QueryInput{
				Query:   "anything",
				Filters: map[string]string{"document_type": "contract"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Answer).To(Equal(rag.NoRelevantAnswer))
			Expect(output.Sources).To(BeEmpty())
		})
	})

	Describe("list_documents tool", func() {
		BeforeEach(func() {
			done := document.New("a.txt", "a.txt", "/tmp/a.txt", 10)
			done.Status = document.StatusCompleted
			done.ChunkCount = 3
			Expect(store.Create(ctx, done)).To(Succeed())

			failed := document.New("b.txt", "b.txt", "/tmp/b.txt", 10)
			failed.Status = document.StatusFailed
			Expect(store.Create(ctx, failed)).To(Succeed())
		})

		It("lists all documents", func() {
			result, output, err := server.handleListDocuments(ctx, nil, DocumentsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(2))
		})

		It("filters by status", func() {
			_, output, err := server.handleListDocuments(ctx, nil, DocumentsInput{Status: "completed"})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(Equal(1))
			Expect(output.Documents[0].Filename).To(Equal("a.txt"))
			Expect(output.Documents[0].ChunkCount).To(Equal(3))
		})
	})
})
