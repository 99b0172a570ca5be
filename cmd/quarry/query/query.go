// Package querycmder provides the query command for asking one-shot
// questions over the indexed documents.
package querycmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/api"
	"github.com/quarryhq/quarry/pkg/cliui"
	"github.com/quarryhq/quarry/pkg/config"
	documentutils "github.com/quarryhq/quarry/pkg/document/utils"
	"github.com/quarryhq/quarry/pkg/dotdir"
	embeddingutils "github.com/quarryhq/quarry/pkg/embeddings/utils"
	llmutils "github.com/quarryhq/quarry/pkg/llm/utils"
	"github.com/quarryhq/quarry/pkg/logger"
	"github.com/quarryhq/quarry/pkg/rag"
	vectorutils "github.com/quarryhq/quarry/pkg/vector/utils"
)

const queryLongDesc string = `Ask a question over the indexed documents.

Retrieves the most relevant chunks, assembles them into a context, and
generates an answer with the configured language model. Sources are listed
with their relevance scores.

Examples:
  quarry query "What is the warranty period?"
  quarry query --top-k 10 "Summarize the quarterly report"
  quarry query --filter document_type=contract "What are the payment terms?"`

const queryShortDesc string = "Ask a question over the indexed documents"

var queryFlagKeys = []string{
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
	config.FlagTopK,
}

type queryCommander struct {
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
	topK           int
	filters        []string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
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
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, queryFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.resolve()
			return cmder.run(cmd.Context(), args[0])
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
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().StringArrayVar(&cmder.filters, "filter", nil, "Metadata filter as key=value (repeatable)")

	return cmd
}

func (c *queryCommander) resolve() {
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
	c.topK = v.GetInt("retrieval.top_k")
}

func (c *queryCommander) run(ctx context.Context, question string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	filters, err := parseFilters(c.filters)
	if err != nil {
		return err
	}

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

	llmClient, err := llmutils.NewClient(&llmutils.NewClientOpts{
		ProviderType: c.llmProvider,
		TargetURL:    c.llmTarget,
		APIKey:       c.viper.GetString("llm.api_key"),
		Model:        c.llmModel,
	})
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	retriever := rag.NewRetriever(embedder, driver, c.topK, c.logger)
	generator := rag.NewGenerator(llmClient, rag.GeneratorConfig{}, c.logger)
	engine := rag.NewEngine(retriever, generator, rag.EngineConfig{
		MaxContextLength: c.viper.GetInt("retrieval.max_context_length"),
		Resolver:         api.NewStoreResolver(store),
	}, c.logger)

	var result *rag.Result
	err = cliui.Step(os.Stdout, "Searching documents", func() error {
		var queryErr error
		result, queryErr = engine.Query(ctx, question, c.topK, filters)
		return queryErr
	})
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *rag.Result) {
	fmt.Printf("\n%s\n", cliui.AnswerStyle.Render(result.Answer))

	if len(result.Sources) > 0 {
		fmt.Printf("\n  %s\n", cliui.KeyStyle.Render("Sources"))
		for i, src := range result.Sources {
			fmt.Printf("  %s %s %s\n",
				cliui.SourceStyle.Render(fmt.Sprintf("[%d]", i+1)),
				cliui.ValueStyle.Render(src.Filename),
				cliui.DimStyle.Render(fmt.Sprintf("(chunk %d, relevance %.2f)", src.ChunkIndex, src.Score)),
			)
		}
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf(
		"retrieval %dms, generation %dms, total %dms",
		result.RetrievalTimeMs, result.LLMTimeMs, result.TotalTimeMs,
	)))
}

// parseFilters turns repeated key=value flags into a metadata filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}
