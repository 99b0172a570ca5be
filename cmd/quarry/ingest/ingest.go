// Package ingestcmder provides the ingest command for one-shot document
// ingestion from the command line.
package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/aiextract"
	"github.com/quarryhq/quarry/pkg/chunker"
	"github.com/quarryhq/quarry/pkg/cliui"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	documentutils "github.com/quarryhq/quarry/pkg/document/utils"
	"github.com/quarryhq/quarry/pkg/dotdir"
	embeddingutils "github.com/quarryhq/quarry/pkg/embeddings/utils"
	"github.com/quarryhq/quarry/pkg/ingest"
	llmutils "github.com/quarryhq/quarry/pkg/llm/utils"
	"github.com/quarryhq/quarry/pkg/logger"
	vectorutils "github.com/quarryhq/quarry/pkg/vector/utils"
)

const ingestLongDesc string = `Ingest documents from the command line.

Each file is registered in the document store, then chunked, embedded, and
indexed synchronously. Files stay where they are; quarry records their
paths rather than copying them.

Examples:
  quarry ingest report.pdf
  quarry ingest notes.md minutes.txt`

const ingestShortDesc string = "Ingest documents into the index"

var ingestFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMTarget,
	config.FlagLLMModel,
}

type ingestCommander struct {
	storageProv    string
	sqlitePath     string
	postgresDSN    string
	vectorProv     string
	vectorTarget   string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	llmProvider    string
	llmTarget      string
	llmModel       string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, ingestFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.resolve()
			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageProvider, &cmder.storageProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMProvider, &cmder.llmProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMTarget, &cmder.llmTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMModel, &cmder.llmModel)

	return cmd
}

func (c *ingestCommander) resolve() {
	v := c.viper
	c.storageProv = v.GetString("storage.provider")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.postgresDSN = v.GetString("storage.postgres_dsn")
	c.vectorProv = v.GetString("vector_store.provider")
	c.vectorTarget = v.GetString("vector_store.target")
	c.embeddingProv = v.GetString("embedding.provider")
	c.embeddingTgt = v.GetString("embedding.target")
	c.embeddingModel = v.GetString("embedding.model")
	c.embeddingDims = v.GetUint("embedding.dimensions")
	c.llmProvider = v.GetString("llm.provider")
	c.llmTarget = v.GetString("llm.target")
	c.llmModel = v.GetString("llm.model")
}

func (c *ingestCommander) run(ctx context.Context, paths []string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ddm := dotdir.NewManager()
	dataDir, err := ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data dir: %w", err)
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".quarry")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	sqlitePath := c.sqlitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, "quarry.sqlite")
	}
	vectorTarget := c.vectorTarget
	if vectorTarget == "" {
		vectorTarget = sqlitePath
	}

	store, err := documentutils.NewStore(ctx, &documentutils.NewStoreOpts{
		ProviderType: c.storageProv,
		DBPath:       sqlitePath,
		DSN:          c.postgresDSN,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating document store: %w", err)
	}
	defer store.Close()

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: c.vectorProv,
		DBPath:       vectorTarget,
		Dimensions:   c.embeddingDims,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector driver: %w", err)
	}
	defer driver.Close()

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProv,
		TargetURL:    c.embeddingTgt,
		APIKey:       c.viper.GetString("embedding.api_key"),
		Model:        c.embeddingModel,
		Dimensions:   c.embeddingDims,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	chnkr, err := chunker.NewChunker(chunker.Config{
		ChunkSize:    c.viper.GetInt("chunking.chunk_size"),
		ChunkOverlap: c.viper.GetInt("chunking.chunk_overlap"),
		MinChunkSize: c.viper.GetInt("chunking.min_chunk_size"),
	})
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	var extractor *aiextract.Extractor
	if c.viper.GetBool("ingest.extract_metadata") {
		llmClient, err := llmutils.NewClient(&llmutils.NewClientOpts{
			ProviderType: c.llmProvider,
			TargetURL:    c.llmTarget,
			APIKey:       c.viper.GetString("llm.api_key"),
			Model:        c.llmModel,
		})
		if err != nil {
			return fmt.Errorf("creating llm client: %w", err)
		}
		extractor = aiextract.NewExtractor(llmClient, aiextract.ExtractorConfig{}, c.logger)
	}

	processor := ingest.NewProcessor(ingest.Config{
		Store:     store,
		Driver:    driver,
		Embedder:  embedder,
		Chunker:   chnkr,
		Docs:      docproc.NewProcessor(docproc.Config{}),
		Extractor: extractor,
		Logger:    c.logger,
	})

	var failed int
	for _, path := range paths {
		if err := c.ingestOne(ctx, store, processor, path); err != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return nil
}

func (c *ingestCommander) ingestOne(ctx context.Context, store document.Store, processor *ingest.Processor, path string) error {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  %s %s: %v\n", cliui.FailMark, name, err)
		return err
	}

	doc := document.New(name, name, path, info.Size())
	if err := store.Create(ctx, doc); err != nil {
		fmt.Printf("  %s %s: %v\n", cliui.FailMark, name, err)
		return err
	}

	err = cliui.Step(os.Stdout, name, func() error {
		return processor.Process(ctx, doc.ID)
	})
	if err != nil {
		return err
	}

	processed, getErr := store.Get(ctx, doc.ID)
	if getErr == nil {
		fmt.Printf("    %s %s  %s %d\n",
			cliui.KeyStyle.Render("type:"), processed.DocumentType,
			cliui.KeyStyle.Render("chunks:"), processed.ChunkCount,
		)
	}
	return nil
}
