package llm

// ChatRequest represents a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "llama3").
	Model string `json:"model"`

	// Conversation messages.
	Messages []Message `json:"messages"`

	// Generation parameters (unified across providers).
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
