package rag_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarryhq/quarry/pkg/rag"
	"github.com/quarryhq/quarry/pkg/vector"
)

var _ = Describe("BuildContext", func() {
	match := func(docID string, idx int, text string, score float32) vector.Match {
		return vector.Match{
			Entry: vector.Entry{
				ID:         docID + "_0",
				DocumentID: docID,
				ChunkIndex: idx,
				Text:       text,
			},
			Score: score,
		}
	}

	It("numbers sources from 1 with document, chunk, and relevance", func() {
		context := rag.BuildContext([]vector.Match{
			match("doc-a", 0, "first chunk", 0.987),
			match("doc-b", 3, "second chunk", 0.5),
		}, 0)

		Expect(context).To(ContainSubstring(
			"[Source 1] (Document: doc-a, Chunk: 0, Relevance: 0.99)\nfirst chunk"))
		Expect(context).To(ContainSubstring(
			"[Source 2] (Document: doc-b, Chunk: 3, Relevance: 0.50)\nsecond chunk"))
	})

	It("separates sources with a divider", func() {
		context := rag.BuildContext([]vector.Match{
			match("doc-a", 0, "one", 1),
			match("doc-b", 0, "two", 1),
		}, 0)

		Expect(strings.Count(context, "\n\n---\n\n")).To(Equal(1))
	})

	It("truncates long contexts with a marker", func() {
		long := strings.Repeat("x", 5000)
		context := rag.BuildContext([]vector.Match{
			match("doc-a", 0, long, 1),
		}, 0)

		Expect(len(context)).To(Equal(rag.DefaultMaxContextLength + len("\n...[truncated]")))
		Expect(strings.HasSuffix(context, "\n...[truncated]")).To(BeTrue())
	})

	It("truncates multibyte text on rune boundaries", func() {
		long := strings.Repeat("文", 5000)
		context := rag.BuildContext([]vector.Match{
			match("doc-a", 0, long, 1),
		}, 0)

		Expect(utf8.ValidString(context)).To(BeTrue())
		Expect(len([]rune(context))).To(Equal(
			rag.DefaultMaxContextLength + len([]rune("\n...[truncated]"))))
		Expect(strings.HasSuffix(context, "\n...[truncated]")).To(BeTrue())
	})

	It("leaves short contexts untouched", func() {
		context := rag.BuildContext([]vector.Match{
			match("doc-a", 0, "short", 1),
		}, 0)

		Expect(context).NotTo(ContainSubstring("[truncated]"))
	})

	It("returns an empty string for no matches", func() {
		Expect(rag.BuildContext(nil, 0)).To(Equal(""))
	})
})
