// Package ollama implements pkg/llm's Client against Ollama's chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quarryhq/quarry/pkg/llm"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "llama3"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Client wraps Ollama's chat API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// ClientConfig holds configuration for the Ollama chat client.
type ClientConfig struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the default model when a request does not name one.
	// Defaults to DefaultModel if empty.
	Model string

	// Timeout bounds each request. Defaults to 300s if zero; local models
	// can be slow to load on first use.
	Timeout time.Duration
}

// chatRequest is the wire format for /api/chat.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []llm.Message  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// chatResponse is the wire format of a non-streaming chat response.
type chatResponse struct {
	Model      string      `json:"model"`
	Message    llm.Message `json:"message"`
	DoneReason string      `json:"done_reason"`
}

// NewClient creates a chat client for Ollama.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Chat sends the request and returns the assistant's completion.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := chatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   false,
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		body.Options = make(map[string]any)
		if req.Temperature != nil {
			body.Options["temperature"] = *req.Temperature
		}
		if req.MaxTokens != nil {
			body.Options["num_predict"] = *req.MaxTokens
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &llm.StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &llm.ChatResponse{
		Model:      chatResp.Model,
		Message:    chatResp.Message,
		StopReason: chatResp.DoneReason,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

var _ llm.Client = (*Client)(nil)
