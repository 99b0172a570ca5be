// Package chunker splits raw document text into overlapping, boundary-aware
// passages for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters consecutive chunks share.
	DefaultChunkOverlap = 200

	// DefaultMinChunkSize is the minimum trimmed length for a chunk to be kept.
	DefaultMinChunkSize = 100

	// boundaryWindow is how far back from a window end the chunker searches
	// for a sentence-ending marker.
	boundaryWindow = 100
)

// sentenceEndings are the markers considered sentence boundaries, including
// the full-width CJK equivalents and paragraph breaks.
var sentenceEndings = []string{". ", "。", "! ", "！", "? ", "？", "\n\n"}

// Chunk is a bounded contiguous span of a document's text.
type Chunk struct {
	// Index is the 0-based position of the chunk within its document,
	// assigned over kept chunks only.
	Index int

	// Text is the trimmed chunk content.
	Text string

	// Start and End are character offsets into the source text before
	// trimming.
	Start int
	End   int

	// Metadata carries the document metadata inherited by the chunk plus
	// the chunk-local position fields.
	Metadata map[string]string
}

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the maximum window length in characters.
	// Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is how many characters consecutive windows share.
	// Defaults to DefaultChunkOverlap if zero.
	ChunkOverlap int

	// MinChunkSize is the minimum trimmed length for a window to be kept.
	// Defaults to DefaultMinChunkSize if zero.
	MinChunkSize int
}

// Chunker splits text into overlapping windows, preferring sentence
// boundaries over raw arithmetic cuts.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// NewChunker creates a Chunker, validating that the configuration guarantees
// forward progress. ChunkSize must be positive and strictly greater than
// ChunkOverlap or the scan cursor would never advance.
func NewChunker(c Config) (*Chunker, error) {
	chunkSize := c.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	chunkOverlap := c.ChunkOverlap
	if chunkOverlap == 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	minChunkSize := c.MinChunkSize
	if minChunkSize == 0 {
		minChunkSize = DefaultMinChunkSize
	}

	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkSize <= chunkOverlap {
		return nil, fmt.Errorf("chunk size (%d) must be greater than chunk overlap (%d)", chunkSize, chunkOverlap)
	}

	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
	}, nil
}

// Chunk splits text into ordered, overlapping chunks. Each kept chunk
// inherits the provided metadata plus its own index and offsets. Empty or
// whitespace-only text, or text whose windows all trim below the minimum
// size, yields no chunks.
func (c *Chunker) Chunk(text string, metadata map[string]string) []Chunk {
	runes := []rune(text)
	length := len(runes)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < length {
		end := start + c.chunkSize
		if end > length {
			end = length
		} else {
			// Not the last window: prefer the rightmost sentence boundary
			// within the final boundaryWindow characters.
			if p := c.boundaryBreak(runes, start, end); p > start {
				end = p
			}
		}

		chunkText := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunkText)) >= c.minChunkSize {
			md := make(map[string]string, len(metadata))
			for k, v := range metadata {
				md[k] = v
			}

			chunks = append(chunks, Chunk{
				Index:    index,
				Text:     chunkText,
				Start:    start,
				End:      end,
				Metadata: md,
			})
			index++
		}

		// The final window consumes the remaining text; re-scanning the
		// overlap tail would only duplicate already-covered characters.
		if end >= length {
			break
		}

		// A boundary break can land inside the overlap region, which would
		// move the cursor backward. Fall back to the arithmetic stride so
		// the scan always advances.
		next := end - c.chunkOverlap
		if next <= start {
			next = start + (c.chunkSize - c.chunkOverlap)
		}
		start = next
	}

	return chunks
}

// boundaryBreak searches backward from end within the final boundaryWindow
// runes for the rightmost sentence-ending marker. It returns the position
// immediately after the marker, or -1 if no marker is found.
func (c *Chunker) boundaryBreak(runes []rune, start, end int) int {
	searchStart := end - boundaryWindow
	if searchStart < start {
		searchStart = start
	}

	window := string(runes[searchStart:end])

	best := -1
	for _, ending := range sentenceEndings {
		if pos := strings.LastIndex(window, ending); pos >= 0 {
			// Convert the byte offset back to a rune offset within the window.
			runePos := len([]rune(window[:pos])) + len([]rune(ending))
			if searchStart+runePos > best {
				best = searchStart + runePos
			}
		}
	}

	return best
}
