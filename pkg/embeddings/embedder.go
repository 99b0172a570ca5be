// Package embeddings provides batch text embedding for retrieval.
package embeddings

import (
	"context"
	"fmt"
)

// Embedder converts batches of text into vector embeddings.
type Embedder interface {
	// Embed converts texts into embeddings, one per input, in input order.
	// Inputs are processed in provider-sized batches; a failed batch fails
	// the whole call.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the width of the vectors this embedder produces.
	Dimensions() uint

	// Degraded reports whether the embedder produces pseudo-embeddings
	// rather than semantic ones.
	Degraded() bool

	// Close releases any resources held by the embedder.
	Close() error
}

// ProviderError wraps an embedding provider failure with the provider name
// and the operation that failed.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embeddings: %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// BatchSize is the maximum number of texts sent to a provider per request.
const BatchSize = 100
