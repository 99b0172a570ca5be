// Package hashed implements a deterministic pseudo-embedding fallback for
// environments without a reachable embedding provider. Vectors are derived
// from a SHA-256 digest of the text, so identical texts map to identical
// vectors but nothing else about the geometry is meaningful. Embedders from
// this package report Degraded() true so callers can surface the limitation.
package hashed

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/quarryhq/quarry/pkg/embeddings"
)

// DefaultDimensions matches the width of text-embedding-3-small so a hashed
// index stays drop-in compatible with a later semantic reindex.
const DefaultDimensions = 1536

// Embedder produces deterministic hash-derived vectors.
type Embedder struct {
	dimensions uint
}

// NewEmbedder creates a hashed pseudo-embedder. A zero dimensions value
// defaults to DefaultDimensions.
func NewEmbedder(dimensions uint) *Embedder {
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed derives one unit-length pseudo-embedding per input text.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	return out, nil
}

// vectorFor expands the text's SHA-256 digest into dimensions values in
// [-1, 1], then normalizes to unit length. The digest is re-hashed with a
// counter byte to generate enough material for wide vectors.
func (e *Embedder) vectorFor(text string) []float32 {
	vec := make([]float32, e.dimensions)

	seed := sha256.Sum256([]byte(text))
	block := seed
	material := block[:]
	counter := byte(0)

	var norm float64
	for i := range vec {
		if len(material) < 2 {
			counter++
			block = sha256.Sum256(append(seed[:], counter))
			material = block[:]
		}

		raw := uint16(material[0])<<8 | uint16(material[1])
		material = material[2:]

		v := float64(raw)/float64(math.MaxUint16)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec
}

// Dimensions reports the configured vector width.
func (e *Embedder) Dimensions() uint {
	return e.dimensions
}

// Degraded reports true: hash-derived vectors carry no semantics.
func (e *Embedder) Degraded() bool {
	return true
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
