package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	documentsToolName    = "list_documents"
	documentsDescription = "List the documents in the collection with their type, processing status, and chunk count."
)

// DocumentsInput represents the input arguments for the documents tool.
type DocumentsInput struct {
	Status string `json:"status,omitempty" jsonschema:"optional status filter: pending, processing, completed, or failed"`
}

// DocumentSummary is one document in the listing.
type DocumentSummary struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	DocumentType string    `json:"document_type,omitempty"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	UploadDate   time.Time `json:"upload_date"`
}

// DocumentsOutput represents the output of the documents tool.
type DocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// handleListDocuments lists stored documents.
func (s *Server) handleListDocuments(ctx context.Context, req *mcp.CallToolRequest, input DocumentsInput) (*mcp.CallToolResult, DocumentsOutput, error) {
	logger := s.config.Logger

	docs, err := s.config.Store.List(ctx)
	if err != nil {
		logger.Error("failed to list documents", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to list documents: %v", err)},
			},
		}, DocumentsOutput{}, nil
	}

	summaries := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		if input.Status != "" && string(doc.Status) != input.Status {
			continue
		}
		summaries = append(summaries, DocumentSummary{
			ID:           doc.ID,
			Filename:     doc.OriginalFilename,
			DocumentType: doc.DocumentType,
			Status:       string(doc.Status),
			ChunkCount:   doc.ChunkCount,
			UploadDate:   doc.UploadDate,
		})
	}

	output := DocumentsOutput{
		Documents: summaries,
		Count:     len(summaries),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal documents output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, DocumentsOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
