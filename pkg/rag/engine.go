package rag

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/vector"
)

// NoRelevantAnswer is returned when retrieval finds nothing to ground an
// answer on. No LLM call is made in that case.
const NoRelevantAnswer = "I couldn't find any relevant information to answer your question."

// Source describes one retrieved chunk backing an answer.
type Source struct {
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata"`
}

// Result is the outcome of a RAG query with per-stage timings.
type Result struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	RetrievalTimeMs int64    `json:"retrieval_time_ms"`
	LLMTimeMs       int64    `json:"llm_time_ms"`
	TotalTimeMs     int64    `json:"total_time_ms"`
}

// FilenameResolver maps document IDs to display filenames. The API layer
// backs this with the document store.
type FilenameResolver interface {
	Filename(ctx context.Context, documentID string) (string, bool)
}

// Engine ties retrieval, context assembly, and generation together.
type Engine struct {
	retriever        *Retriever
	generator        *Generator
	maxContextLength int
	resolver         FilenameResolver
	logger           *zap.Logger
}

// EngineConfig holds engine-level parameters.
type EngineConfig struct {
	// MaxContextLength defaults to DefaultMaxContextLength if zero.
	MaxContextLength int

	// Resolver resolves document filenames for source listings. Optional;
	// when nil the document ID is used as the filename.
	Resolver FilenameResolver
}

// NewEngine creates a query engine.
func NewEngine(retriever *Retriever, generator *Generator, cfg EngineConfig, logger *zap.Logger) *Engine {
	maxContextLength := cfg.MaxContextLength
	if maxContextLength <= 0 {
		maxContextLength = DefaultMaxContextLength
	}

	return &Engine{
		retriever:        retriever,
		generator:        generator,
		maxContextLength: maxContextLength,
		resolver:         cfg.Resolver,
		logger:           logger,
	}
}

// Query runs the full pipeline: retrieve chunks, assemble context, and
// generate a grounded answer. When nothing relevant is retrieved it
// short-circuits with NoRelevantAnswer and zero LLM time.
func (e *Engine) Query(ctx context.Context, query string, topK int, filter map[string]string) (*Result, error) {
	start := time.Now()

	retrievalStart := time.Now()
	matches, err := e.retriever.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieving: %w", err)
	}
	retrievalTime := time.Since(retrievalStart).Milliseconds()

	if len(matches) == 0 {
		return &Result{
			Answer:          NoRelevantAnswer,
			Sources:         []Source{},
			RetrievalTimeMs: retrievalTime,
			LLMTimeMs:       0,
			TotalTimeMs:     time.Since(start).Milliseconds(),
		}, nil
	}

	contextBlock := BuildContext(matches, e.maxContextLength)

	llmStart := time.Now()
	answer, err := e.generator.Generate(ctx, query, contextBlock)
	if err != nil {
		return nil, err
	}
	llmTime := time.Since(llmStart).Milliseconds()

	result := &Result{
		Answer:          answer,
		Sources:         e.formatSources(ctx, matches),
		RetrievalTimeMs: retrievalTime,
		LLMTimeMs:       llmTime,
		TotalTimeMs:     time.Since(start).Milliseconds(),
	}

	e.logger.Info("rag query answered",
		zap.Int("sources", len(result.Sources)),
		zap.Int64("retrieval_time_ms", result.RetrievalTimeMs),
		zap.Int64("llm_time_ms", result.LLMTimeMs),
	)

	return result, nil
}

// formatSources converts matches into the response source listing, resolving
// display filenames when a resolver is configured.
func (e *Engine) formatSources(ctx context.Context, matches []vector.Match) []Source {
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		filename := m.DocumentID
		if e.resolver != nil {
			if name, ok := e.resolver.Filename(ctx, m.DocumentID); ok {
				filename = name
			}
		}

		metadata := m.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		sources = append(sources, Source{
			DocumentID: m.DocumentID,
			Filename:   filename,
			ChunkIndex: m.ChunkIndex,
			Text:       m.Text,
			Score:      math.Round(float64(m.Score)*1000) / 1000,
			Metadata:   metadata,
		})
	}
	return sources
}
