package config

import (
	"github.com/quarryhq/quarry/pkg/chunker"
	"github.com/quarryhq/quarry/pkg/rag"
)

const (
	defaultOllamaTarget = "http://localhost:11434"

	defaultAPIListen = ":8080"

	defaultStorageProvider = "sqlite"
	defaultVectorProvider  = "sqlitevec"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3"

	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256

	defaultEventsProvider = "none"
	defaultEventsTopic    = "quarry.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultLLMModel,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    chunker.DefaultChunkSize,
			ChunkOverlap: chunker.DefaultChunkOverlap,
			MinChunkSize: chunker.DefaultMinChunkSize,
		},
		Retrieval: RetrievalConfig{
			TopK:             rag.DefaultTopK,
			MaxContextLength: rag.DefaultMaxContextLength,
		},
		Ingest: IngestConfig{
			NumWorkers: defaultIngestWorkers,
			QueueSize:  defaultIngestQueueSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
