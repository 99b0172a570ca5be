// Package vector provides interfaces and implementations for chunk vector
// storage and similarity search.
package vector

import "context"

// Entry represents a stored chunk with its embedding and metadata.
type Entry struct {
	// ID is a unique identifier for the entry, "{document_id}_{chunk_index}".
	ID string

	// DocumentID is the owning document's identifier.
	DocumentID string

	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int

	// Text is the chunk content.
	Text string

	// Metadata carries the chunk's metadata fields.
	Metadata map[string]string

	// Embedding is the vector representation of the chunk text.
	Embedding []float32
}

// Match represents a search result with similarity score.
type Match struct {
	Entry

	// Score is the cosine similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of chunk embeddings.
type Driver interface {
	// Upsert stores entries with their embeddings. An entry with an
	// existing ID replaces the stored one.
	Upsert(ctx context.Context, entries []Entry) error

	// Query finds the topK most similar entries to the given embedding.
	// A non-empty filter restricts results to entries whose metadata
	// matches every key/value pair.
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Match, error)

	// DeleteByDocument removes every entry belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count reports the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
