package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/llm"
)

const (
	// DefaultTemperature keeps answers grounded in the provided context.
	DefaultTemperature = 0.1

	// DefaultMaxTokens bounds answer length.
	DefaultMaxTokens = 2000

	// maxRetries is how many times a transient failure is retried.
	maxRetries = 3
)

// systemPrompt constrains the model to the retrieved context.
const systemPrompt = `You are a helpful AI assistant for document search and Q&A.
Your task is to answer questions based ONLY on the provided context from documents.

Rules:
1. Answer based solely on the provided context
2. If the context doesn't contain enough information, say so clearly
3. Cite sources using [Source N] notation
4. Be concise and accurate
5. ALWAYS answer in Traditional Chinese (繁體中文), regardless of the input language, unless explicitly asked to translate.
6. Include specific details from the sources when relevant`

// Generator produces grounded answers from assembled context.
type Generator struct {
	client      llm.Client
	model       string
	temperature float64
	maxTokens   int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// GeneratorConfig holds generation parameters.
type GeneratorConfig struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature defaults to DefaultTemperature if zero.
	Temperature float64

	// MaxTokens defaults to DefaultMaxTokens if zero.
	MaxTokens int

	// RetryDelay is the initial backoff after a transient failure,
	// doubling per attempt. Defaults to 1s if zero.
	RetryDelay time.Duration
}

// NewGenerator creates a Generator on top of the given chat client.
func NewGenerator(client llm.Client, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Generate asks the LLM to answer the query from the assembled context.
// Transient failures (rate limiting, server errors, network errors) are
// retried with exponential backoff; if the provider is still rate limiting
// after the final retry, a *RateLimitError is returned.
func (g *Generator) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	userPrompt := fmt.Sprintf(`Context from documents:
%s

Question: %s

Please provide a clear, accurate answer based on the context above. Cite your sources.`, contextBlock, query)

	req := &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, systemPrompt),
			llm.NewTextMessage(llm.RoleUser, userPrompt),
		},
		Temperature: &g.temperature,
		MaxTokens:   &g.maxTokens,
	}

	delay := g.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.client.Chat(ctx, req)
		if err == nil {
			return resp.Message.Content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !transient(err) {
			return "", fmt.Errorf("generating answer: %w", err)
		}

		if attempt == maxRetries {
			break
		}

		g.logger.Warn("transient llm failure, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	var statusErr *llm.StatusError
	if errors.As(lastErr, &statusErr) && statusErr.IsRateLimited() {
		return "", &RateLimitError{Attempts: maxRetries, Err: lastErr}
	}
	return "", fmt.Errorf("generating answer after %d retries: %w", maxRetries, lastErr)
}

// transient reports whether err is worth retrying: rate limiting, provider
// server errors, and anything that is not an HTTP status at all (connection
// resets, timeouts, DNS failures).
func transient(err error) bool {
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		return true
	}
	return statusErr.IsRateLimited() || statusErr.Code >= 500
}
