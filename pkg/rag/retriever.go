// Package rag implements retrieval-augmented question answering over the
// vector index: retrieval, context assembly, and answer generation.
package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/embeddings"
	"github.com/quarryhq/quarry/pkg/vector"
)

// DefaultTopK is the number of chunks retrieved when the caller does not
// specify one.
const DefaultTopK = 4

// Retriever embeds queries and finds the most similar stored chunks.
type Retriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	topK     int
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. A topK of zero falls back to DefaultTopK.
func NewRetriever(embedder embeddings.Embedder, driver vector.Driver, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		driver:   driver,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve embeds the query and returns the topK most similar chunks.
// A topK of zero uses the retriever's configured value.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter map[string]string) ([]vector.Match, error) {
	if topK <= 0 {
		topK = r.topK
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}

	matches, err := r.driver.Query(ctx, vecs[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	r.logger.Debug("retrieved chunks",
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}
