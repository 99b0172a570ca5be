// Package llmutils is the llm utility package
package llmutils

import (
	"fmt"
	"time"

	"github.com/quarryhq/quarry/pkg/llm"
	"github.com/quarryhq/quarry/pkg/llm/ollama"
	"github.com/quarryhq/quarry/pkg/llm/openai"
)

type NewClientOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Model        string
	Timeout      time.Duration
}

// NewClient constructs the chat Client selected by ProviderType.
func NewClient(o *NewClientOpts) (llm.Client, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewClient(ollama.ClientConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case "openai":
		return openai.NewClient(openai.ClientConfig{
			APIKey:  o.APIKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
