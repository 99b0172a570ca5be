package rag

import "fmt"

// RateLimitError is returned when the LLM provider keeps rate limiting
// after every retry attempt.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rag: rate limit exceeded after %d retries, please try again later", e.Attempts)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
