// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/embeddings"
	"github.com/quarryhq/quarry/pkg/embeddings/hashed"
	"github.com/quarryhq/quarry/pkg/embeddings/ollama"
	"github.com/quarryhq/quarry/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Model        string
	Dimensions   uint
	Logger       *zap.Logger
}

// NewEmbedder constructs the Embedder selected by ProviderType. An "openai"
// provider with no API key falls back to the hashed pseudo-embedder so
// ingestion keeps working in degraded mode; the fallback is logged as a
// warning.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "openai":
		if o.APIKey == "" {
			logger.Warn("no api key for openai embeddings, falling back to hashed pseudo-embeddings",
				zap.Uint("dimensions", o.Dimensions),
			)
			return hashed.NewEmbedder(o.Dimensions), nil
		}
		return openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "hashed":
		return hashed.NewEmbedder(o.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
