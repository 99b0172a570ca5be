package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/rag"
)

// SearchRequest is the JSON body for POST /api/search/query.
type SearchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters"`
}

// handleSearchQuery runs a retrieval-augmented query and returns the answer
// with its sources and stage timings.
func (s *Server) handleSearchQuery(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	result, err := s.engine.Query(c.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		var rateLimited *rag.RateLimitError
		if errors.As(err, &rateLimited) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: err.Error()})
		}

		s.logger.Error("search query failed",
			zap.String("query", req.Query),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(result)
}

// StoreResolver resolves document IDs to original filenames for search
// source attribution.
type StoreResolver struct {
	store document.Store
}

// NewStoreResolver wraps a document store as a rag.FilenameResolver.
func NewStoreResolver(store document.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

var _ rag.FilenameResolver = (*StoreResolver)(nil)

func (r *StoreResolver) Filename(ctx context.Context, documentID string) (string, bool) {
	doc, err := r.store.Get(ctx, documentID)
	if err != nil {
		return "", false
	}
	return doc.OriginalFilename, true
}
