package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Client is a chat completion client backed by a single provider.
type Client interface {
	// Chat sends the request and returns the assistant's completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Close releases any resources held by the client.
	Close() error
}

// StatusError is returned when a provider responds with a non-2xx status.
// Callers inspect Code to distinguish retryable failures like rate limits.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: provider returned status %d: %s", e.Code, e.Body)
}

// IsRateLimited reports whether the error is a provider 429 response.
func (e *StatusError) IsRateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}
