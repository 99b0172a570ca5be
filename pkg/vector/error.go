package vector

import "errors"

var (
	// ErrNotFound is returned when an entry is not found in the vector store.
	ErrNotFound = errors.New("entry not found")

	// ErrDimensionMismatch is returned when an embedding's width does not
	// match the store's configured dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
