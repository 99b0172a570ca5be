// Package testutils holds shared test doubles for quarry's pipeline
// interfaces.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/quarryhq/quarry/pkg/llm"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// Default is returned for texts without a configured embedding.
	Default []float32

	// FailOn causes Embed to return an error when an input text matches.
	FailOn string

	// DegradedMode is reported by Degraded.
	DegradedMode bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}
		if emb, ok := m.Embeddings[text]; ok {
			out[i] = emb
			continue
		}
		out[i] = m.Default
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() uint {
	return uint(len(m.Default))
}

func (m *MockEmbedder) Degraded() bool {
	return m.DegradedMode
}

func (m *MockEmbedder) Close() error {
	return nil
}

// MockLLMClient is a scripted chat client. Responses are consumed in order;
// once exhausted the last one repeats.
type MockLLMClient struct {
	mu sync.Mutex

	// Responses are returned one per Chat call. A nil error with empty
	// content yields an empty answer.
	Responses []MockLLMResponse

	// Requests records every request received.
	Requests []*llm.ChatRequest

	calls int
}

// MockLLMResponse is one scripted Chat outcome.
type MockLLMResponse struct {
	Content string
	Err     error
}

func (m *MockLLMClient) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if len(m.Responses) == 0 {
		return &llm.ChatResponse{
			Message: llm.NewTextMessage(llm.RoleAssistant, ""),
		}, nil
	}

	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++

	r := m.Responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.ChatResponse{
		Message:    llm.NewTextMessage(llm.RoleAssistant, r.Content),
		StopReason: "stop",
	}, nil
}

// Calls reports how many Chat calls were made.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockLLMClient) Close() error {
	return nil
}
