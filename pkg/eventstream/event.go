// Package eventstream defines transport-neutral document lifecycle events
// and the Publisher interface implemented by the stream backends.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentCompleted is emitted after a document is fully
	// processed and indexed.
	EventTypeDocumentCompleted = "quarry.document.completed"

	// EventTypeDocumentFailed is emitted when document processing fails.
	EventTypeDocumentFailed = "quarry.document.failed"

	// EventTypeDocumentDeleted is emitted after a document and its chunks
	// are removed.
	EventTypeDocumentDeleted = "quarry.document.deleted"
)

// DocumentEvent is a transport-neutral document lifecycle event payload.
type DocumentEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	Status     string `json:"status,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewDocumentEvent creates a v1 event with a fresh ID and timestamp.
func NewDocumentEvent(eventType, documentID string) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		DocumentID:    documentID,
	}
}
