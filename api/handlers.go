package api

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/ingest/worker"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// DocumentUploadResponse is returned after a successful upload.
type DocumentUploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// DocumentListItem is one entry in the document listing.
type DocumentListItem struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	DocumentType  string    `json:"document_type,omitempty"`
	Status        string    `json:"status"`
	UploadDate    time.Time `json:"upload_date"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// DocumentDetail is the full document record returned by the get endpoint.
type DocumentDetail struct {
	ID            string            `json:"id"`
	Filename      string            `json:"filename"`
	DocumentType  string            `json:"document_type,omitempty"`
	Status        string            `json:"status"`
	UploadDate    time.Time         `json:"upload_date"`
	ProcessedDate *time.Time        `json:"processed_date"`
	FileSizeBytes int64             `json:"file_size_bytes"`
	MimeType      string            `json:"mime_type,omitempty"`
	Metadata      map[string]string `json:"metadata"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	RetryCount    int               `json:"retry_count"`
	ChunkCount    int               `json:"chunk_count"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStats returns document and chunk counts.
func (s *Server) handleStats(c *fiber.Ctx) error {
	ctx := c.Context()

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to count documents"})
	}

	chunks, err := s.driver.Count(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to count chunks"})
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return c.JSON(fiber.Map{
		"total_documents":      total,
		"pending_documents":    counts[document.StatusPending],
		"processing_documents": counts[document.StatusProcessing],
		"completed_documents":  counts[document.StatusCompleted],
		"failed_documents":     counts[document.StatusFailed],
		"total_chunks":         chunks,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUploadDocument accepts a multipart file upload, stores the file,
// registers the document, and schedules background processing.
func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	ctx := c.Context()

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file field is required"})
	}

	maxSize := s.config.MaxUploadBytes
	if maxSize <= 0 {
		maxSize = s.docs.MaxFileSizeBytes()
	}
	if header.Size > maxSize {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "file size exceeds maximum of " + strconv.FormatInt(maxSize/(1024*1024), 10) + "MB",
		})
	}

	// Reject re-uploads of the same file unless the earlier attempt failed.
	existing, err := s.store.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to check for duplicates"})
	}
	for _, doc := range existing {
		if doc.OriginalFilename == header.Filename &&
			doc.FileSizeBytes == header.Size &&
			doc.Status != document.StatusFailed {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Error: "文件 '" + header.Filename + "' 已存在，請勿重複上傳。",
			})
		}
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to prepare upload directory"})
	}

	storedName := uuid.NewString() + filepath.Ext(header.Filename)
	path := filepath.Join(s.config.UploadDir, storedName)
	if err := c.SaveFile(header, path); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to save file"})
	}

	if err := s.docs.Validate(path); err != nil {
		os.Remove(path)
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	doc := document.New(storedName, header.Filename, path, header.Size)
	if documentType := c.Query("document_type"); documentType != "" {
		doc.DocumentType = documentType
	}

	if err := s.store.Create(ctx, doc); err != nil {
		os.Remove(path)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to register document"})
	}

	if !s.pool.Enqueue(worker.Job{DocumentID: doc.ID}) {
		s.logger.Warn("upload accepted but processing queue is full",
			zap.String("document_id", doc.ID),
		)
	}

	return c.JSON(DocumentUploadResponse{
		ID:       doc.ID,
		Filename: header.Filename,
		Status:   string(doc.Status),
		Message:  "文件上傳成功，正在後台處理。",
	})
}

// handleListDocuments lists documents, newest first, with optional status
// and document_type filters plus limit/offset pagination.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs, err := s.store.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list documents"})
	}

	status := c.Query("status")
	documentType := c.Query("document_type")

	limit := c.QueryInt("limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	filtered := make([]DocumentListItem, 0, len(docs))
	for _, doc := range docs {
		if status != "" && string(doc.Status) != status {
			continue
		}
		if documentType != "" && doc.DocumentType != documentType {
			continue
		}
		filtered = append(filtered, DocumentListItem{
			ID:            doc.ID,
			Filename:      doc.OriginalFilename,
			DocumentType:  doc.DocumentType,
			Status:        string(doc.Status),
			UploadDate:    doc.UploadDate,
			FileSizeBytes: doc.FileSizeBytes,
		})
	}

	if offset >= len(filtered) {
		return c.JSON([]DocumentListItem{})
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return c.JSON(filtered[offset:end])
}

// handleGetDocument returns the full record for one document.
func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	doc, err := s.lookupDocument(c)
	if doc == nil {
		return err
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return c.JSON(DocumentDetail{
		ID:            doc.ID,
		Filename:      doc.OriginalFilename,
		DocumentType:  doc.DocumentType,
		Status:        string(doc.Status),
		UploadDate:    doc.UploadDate,
		ProcessedDate: doc.ProcessedDate,
		FileSizeBytes: doc.FileSizeBytes,
		MimeType:      doc.MimeType,
		Metadata:      metadata,
		ErrorMessage:  doc.ErrorMessage,
		RetryCount:    doc.RetryCount,
		ChunkCount:    doc.ChunkCount,
	})
}

// handleGetDocumentContent serves the raw uploaded file.
func (s *Server) handleGetDocumentContent(c *fiber.Ctx) error {
	doc, err := s.lookupDocument(c)
	if doc == nil {
		return err
	}

	if _, err := os.Stat(doc.FilePath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "文件檔案已遺失"})
	}

	return c.Download(doc.FilePath, doc.OriginalFilename)
}

// handleDeleteDocument removes the file, chunks, and record.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	doc, err := s.lookupDocument(c)
	if doc == nil {
		return err
	}

	if removeErr := os.Remove(doc.FilePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		s.logger.Warn("failed to remove document file",
			zap.String("document_id", doc.ID),
			zap.Error(removeErr),
		)
	}

	if err := s.processor.Delete(c.Context(), doc.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete document"})
	}

	return c.JSON(fiber.Map{"message": "文件刪除成功"})
}

// lookupDocument resolves the :id path parameter to a stored document.
// On failure it writes the error response and returns a nil document;
// callers return the accompanying error value as-is.
func (s *Server) lookupDocument(c *fiber.Ctx) (*document.Document, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "無效的文件 ID 格式"})
	}

	doc, err := s.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "找不到文件"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load document"})
	}

	return doc, nil
}
