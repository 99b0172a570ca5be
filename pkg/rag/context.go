package rag

import (
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/pkg/vector"
)

// DefaultMaxContextLength is the maximum assembled context length in
// characters before truncation.
const DefaultMaxContextLength = 4000

// truncationMarker is appended when the assembled context is cut off.
const truncationMarker = "\n...[truncated]"

// BuildContext assembles retrieved chunks into the context block handed to
// the LLM. Sources are numbered from 1 in match order; contexts longer than
// maxLength are truncated with a visible marker. A maxLength of zero uses
// DefaultMaxContextLength.
func BuildContext(matches []vector.Match, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxContextLength
	}

	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		parts = append(parts, fmt.Sprintf(
			"[Source %d] (Document: %s, Chunk: %d, Relevance: %.2f)\n%s",
			i+1, m.DocumentID, m.ChunkIndex, m.Score, m.Text,
		))
	}

	context := strings.Join(parts, "\n\n---\n\n")
	// Truncate on runes so a multibyte character is never split mid-sequence.
	if runes := []rune(context); len(runes) > maxLength {
		context = string(runes[:maxLength]) + truncationMarker
	}

	return context
}
