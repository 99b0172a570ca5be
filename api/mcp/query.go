package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/rag"
)

var (
	queryToolName    = "query_documents"
	queryDescription = "Answer a natural-language question using the indexed document collection. Returns a grounded answer with the source chunks it was built from."
)

// QueryInput represents the input arguments for the query tool.
type QueryInput struct {
	Query   string            `json:"query" jsonschema:"the question to answer from the document collection"`
	TopK    int               `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default: 4)"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"optional metadata filters, e.g. document_type"`
}

// QueryOutput represents the output of the query tool.
type QueryOutput struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

// handleQuery answers a question over the indexed documents.
func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP query request",
		zap.String("query", input.Query),
		zap.Int("topK", input.TopK),
	)

	if input.Query == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "query is required"},
			},
		}, QueryOutput{}, nil
	}

	result, err := s.config.Engine.Query(ctx, input.Query, input.TopK, input.Filters)
	if err != nil {
		logger.Error("failed to answer query", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to answer query: %v", err)},
			},
		}, QueryOutput{}, nil
	}

	output := QueryOutput{
		Answer:  result.Answer,
		Sources: result.Sources,
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal query output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, QueryOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
