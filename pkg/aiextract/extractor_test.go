package aiextract_test

import (
	"context"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/aiextract"
	testutils "github.com/quarryhq/quarry/pkg/utils/test"
)

var _ = Describe("ParseResponse", func() {
	It("parses a plain JSON object", func() {
		m, err := aiextract.ParseResponse(`{"title": "Q3 Report"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(HaveKeyWithValue("title", "Q3 Report"))
	})

	It("recovers JSON from a fenced code block", func() {
		m, err := aiextract.ParseResponse("Here you go:\n```json\n{\"title\": \"fenced\"}\n```\nDone.")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(HaveKeyWithValue("title", "fenced"))
	})

	It("recovers a bare JSON object embedded in prose", func() {
		m, err := aiextract.ParseResponse(`The metadata is {"title": "bare"} as requested.`)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(HaveKeyWithValue("title", "bare"))
	})

	It("fails when no JSON object is present", func() {
		_, err := aiextract.ParseResponse("I cannot extract anything.")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("DefaultSchema", func() {
	It("includes the base fields for every type", func() {
		for _, docType := range []string{"contract", "sop", "official_document", "general"} {
			schema := aiextract.DefaultSchema(docType)
			names := make([]string, 0, len(schema.Fields))
			for _, f := range schema.Fields {
				names = append(names, f.Name)
			}
			Expect(names).To(ContainElements("title", "date", "summary"))
		}
	})

	It("adds contract-specific fields", func() {
		schema := aiextract.DefaultSchema("contract")
		names := make([]string, 0, len(schema.Fields))
		for _, f := range schema.Fields {
			names = append(names, f.Name)
		}
		Expect(names).To(ContainElements("parties", "effective_date", "expiry_date"))
	})
})

var _ = Describe("Validate", func() {
	schema := aiextract.Schema{Fields: []aiextract.Field{
		{Name: "title", Type: aiextract.FieldString},
		{Name: "tags", Type: aiextract.FieldArray},
		{Name: "amount", Type: aiextract.FieldNumber},
	}}

	It("fills missing fields with nil", func() {
		out := aiextract.Validate(map[string]any{}, schema)
		Expect(out).To(HaveKey("title"))
		Expect(out["title"]).To(BeNil())
		Expect(out["tags"]).To(BeNil())
	})

	It("coerces scalars to strings and wraps scalars into arrays", func() {
		out := aiextract.Validate(map[string]any{
			"title": 42.0,
			"tags":  "solo",
		}, schema)
		Expect(out["title"]).To(Equal("42"))
		Expect(out["tags"]).To(Equal([]any{"solo"}))
	})

	It("parses numeric strings and nils out garbage numbers", func() {
		out := aiextract.Validate(map[string]any{"amount": "12.5"}, schema)
		Expect(out["amount"]).To(BeNumerically("~", 12.5, 1e-9))

		out = aiextract.Validate(map[string]any{"amount": "not a number"}, schema)
		Expect(out["amount"]).To(BeNil())
	})

	It("drops fields not in the schema", func() {
		out := aiextract.Validate(map[string]any{"rogue": true}, schema)
		Expect(out).NotTo(HaveKey("rogue"))
	})
})

var _ = Describe("Extractor", func() {
	It("extracts and validates metadata end to end", func() {
		client := &testutils.MockLLMClient{
			Responses: []testutils.MockLLMResponse{
				{Content: "```json\n{\"title\": \"服務合約\", \"date\": \"2026-01-15\", \"summary\": \"annual service agreement\", \"parties\": [\"Acme\", \"Globex\"]}\n```"},
			},
		}

		extractor := aiextract.NewExtractor(client, aiextract.ExtractorConfig{}, zap.NewNop())

		metadata, err := extractor.Extract(context.Background(), "contract text", "contract", nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(metadata["title"]).To(Equal("服務合約"))
		Expect(metadata["parties"]).To(Equal([]any{"Acme", "Globex"}))
		Expect(metadata).To(HaveKey("expiry_date"))
		Expect(metadata["expiry_date"]).To(BeNil())

		Expect(client.Requests).To(HaveLen(1))
		req := client.Requests[0]
		Expect(req.Messages[0].Content).To(ContainSubstring("Output ONLY valid JSON"))
		Expect(req.Messages[1].Content).To(ContainSubstring("contract text"))
		Expect(req.Messages[1].Content).To(ContainSubstring("parties"))
	})

	It("truncates oversized multibyte documents on rune boundaries", func() {
		client := &testutils.MockLLMClient{
			Responses: []testutils.MockLLMResponse{
				{Content: `{"title": "長文"}`},
			},
		}

		extractor := aiextract.NewExtractor(client, aiextract.ExtractorConfig{}, zap.NewNop())

		text := strings.Repeat("約", 9000)
		_, err := extractor.Extract(context.Background(), text, "general", nil)
		Expect(err).NotTo(HaveOccurred())

		prompt := client.Requests[0].Messages[1].Content
		Expect(utf8.ValidString(prompt)).To(BeTrue())
		Expect(prompt).To(ContainSubstring("...[truncated]"))
		Expect(len([]rune(prompt))).To(BeNumerically("<", len([]rune(text))))
	})
})
