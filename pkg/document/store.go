package document

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document ID is unknown to the store.
var ErrNotFound = errors.New("document not found")

// Store persists document metadata records.
type Store interface {
	// Create inserts a new document record.
	Create(ctx context.Context, doc *Document) error

	// Get returns the document with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns all documents, newest upload first.
	List(ctx context.Context) ([]*Document, error)

	// Update persists changes to an existing document, or ErrNotFound.
	Update(ctx context.Context, doc *Document) error

	// Delete removes the document record, or ErrNotFound.
	Delete(ctx context.Context, id string) error

	// CountByStatus returns document counts keyed by lifecycle status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// Close releases any resources held by the store.
	Close() error
}
