// Package document defines the document lifecycle model and the Store
// interface implemented by the storage backends.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Status values for the document processing lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is the stored metadata record for an ingested file.
type Document struct {
	ID               string            `json:"id"`
	Filename         string            `json:"filename"`
	OriginalFilename string            `json:"original_filename"`
	FilePath         string            `json:"file_path"`
	FileSizeBytes    int64             `json:"file_size_bytes"`
	MimeType         string            `json:"mime_type,omitempty"`
	DocumentType     string            `json:"document_type,omitempty"`
	Status           Status            `json:"status"`
	ChunkCount       int               `json:"chunk_count"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	RetryCount       int               `json:"retry_count"`
	UploadDate       time.Time         `json:"upload_date"`
	ProcessedDate    *time.Time        `json:"processed_date,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// New creates a pending document record with a fresh ID and timestamps.
func New(filename, originalFilename, filePath string, sizeBytes int64) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:               uuid.NewString(),
		Filename:         filename,
		OriginalFilename: originalFilename,
		FilePath:         filePath,
		FileSizeBytes:    sizeBytes,
		Status:           StatusPending,
		UploadDate:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
