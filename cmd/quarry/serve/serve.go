// Package servecmder provides the serve command for running the quarry service.
package servecmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/api"
	"github.com/quarryhq/quarry/api/mcp"
	"github.com/quarryhq/quarry/pkg/aiextract"
	"github.com/quarryhq/quarry/pkg/chunker"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	documentutils "github.com/quarryhq/quarry/pkg/document/utils"
	"github.com/quarryhq/quarry/pkg/dotdir"
	embeddingutils "github.com/quarryhq/quarry/pkg/embeddings/utils"
	eventstreamutils "github.com/quarryhq/quarry/pkg/eventstream/utils"
	"github.com/quarryhq/quarry/pkg/ingest"
	"github.com/quarryhq/quarry/pkg/ingest/worker"
	llmutils "github.com/quarryhq/quarry/pkg/llm/utils"
	"github.com/quarryhq/quarry/pkg/logger"
	"github.com/quarryhq/quarry/pkg/rag"
	"github.com/quarryhq/quarry/pkg/vector"
	vectorutils "github.com/quarryhq/quarry/pkg/vector/utils"
	"github.com/quarryhq/quarry/pkg/watcher"
)

const serveLongDesc string = `Run the quarry service.

Starts the HTTP API server, the ingestion worker pool, and (when an inbox
directory is configured) the inbox watcher. The MCP endpoint is mounted on
the API server at /mcp.

Examples:
  quarry serve
  quarry serve --listen :9090
  quarry serve --inbox ./inbox --ingest-workers 5`

const serveShortDesc string = "Run the quarry service"

// serveFlagKeys lists the registry flags the serve command exposes.
var serveFlagKeys = []string{
	config.FlagAPIListen,
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
	config.FlagInboxDir,
	config.FlagIngestWorkers,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
}

type ServeCommander struct {
	listen         string
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
	inboxDir       string
	ingestWorkers  int
	eventsProvider string
	eventsBrokers  string
	uploadDir      string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, serveFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.resolve()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
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
	config.AddStringFlag(cmd, config.Flags, config.FlagInboxDir, &cmder.inboxDir)
	config.AddIntFlag(cmd, config.Flags, config.FlagIngestWorkers, &cmder.ingestWorkers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	cmd.Flags().StringVar(&cmder.uploadDir, "upload-dir", "", "Directory for uploaded files (default: <config dir>/uploads)")

	return cmd
}

// resolve reads the effective configuration out of viper. Bound flags take
// precedence over environment variables, the config file, and defaults.
func (c *ServeCommander) resolve() {
	v := c.viper
	c.listen = v.GetString("api.listen")
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
	c.inboxDir = v.GetString("ingest.inbox_dir")
	c.ingestWorkers = v.GetInt("ingest.num_workers")
	c.eventsProvider = v.GetString("events.provider")
	c.eventsBrokers = v.GetString("events.brokers")
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	dataDir, err := resolveDataDir(c.configDir)
	if err != nil {
		return err
	}
	if c.uploadDir == "" {
		c.uploadDir = filepath.Join(dataDir, "uploads")
	}

	// Create shared document store
	store, err := c.newDocumentStore(ctx, dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	// Create vector driver
	driver, err := c.newVectorDriver(ctx, dataDir)
	if err != nil {
		return err
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

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.eventsProvider,
		Brokers:      splitBrokers(c.eventsBrokers),
		Topic:        c.viper.GetString("events.topic"),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	chnkr, err := chunker.NewChunker(chunker.Config{
		ChunkSize:    c.viper.GetInt("chunking.chunk_size"),
		ChunkOverlap: c.viper.GetInt("chunking.chunk_overlap"),
		MinChunkSize: c.viper.GetInt("chunking.min_chunk_size"),
	})
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	docs := docproc.NewProcessor(docproc.Config{})

	var extractor *aiextract.Extractor
	if c.viper.GetBool("ingest.extract_metadata") {
		extractor = aiextract.NewExtractor(llmClient, aiextract.ExtractorConfig{}, c.logger)
	}

	processor := ingest.NewProcessor(ingest.Config{
		Store:     store,
		Driver:    driver,
		Embedder:  embedder,
		Chunker:   chnkr,
		Docs:      docs,
		Extractor: extractor,
		Publisher: publisher,
		Logger:    c.logger,
	})

	pool := worker.NewPool(worker.Config{
		Processor:  processor,
		Logger:     c.logger,
		NumWorkers: c.ingestWorkers,
		QueueSize:  c.viper.GetInt("ingest.queue_size"),
	})
	defer pool.Close()

	retriever := rag.NewRetriever(embedder, driver, c.topK, c.logger)
	generator := rag.NewGenerator(llmClient, rag.GeneratorConfig{}, c.logger)
	engine := rag.NewEngine(retriever, generator, rag.EngineConfig{
		MaxContextLength: c.viper.GetInt("retrieval.max_context_length"),
		Resolver:         api.NewStoreResolver(store),
	}, c.logger)

	apiServer := api.NewServer(api.Config{
		ListenAddr: c.listen,
		UploadDir:  c.uploadDir,
	}, api.Deps{
		Store:     store,
		Driver:    driver,
		Engine:    engine,
		Processor: processor,
		Pool:      pool,
		Docs:      docs,
	}, c.logger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine: engine,
		Store:  store,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}
	apiServer.App().All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	c.logger.Info("starting api server",
		zap.String("api_addr", c.listen),
		zap.String("upload_dir", c.uploadDir),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start inbox watcher in goroutine when configured
	if c.inboxDir != "" {
		w, err := watcher.New(watcher.Config{
			Dir:    c.inboxDir,
			Store:  store,
			Pool:   pool,
			Logger: c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating inbox watcher: %w", err)
		}

		c.logger.Info("starting inbox watcher", zap.String("dir", c.inboxDir))

		go func() {
			if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
				errChan <- fmt.Errorf("inbox watcher error: %w", err)
			}
		}()
	}

	// Start API server in goroutine
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) newDocumentStore(ctx context.Context, dataDir string) (document.Store, error) {
	sqlitePath := c.sqlitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, "quarry.sqlite")
	}

	store, err := documentutils.NewStore(ctx, &documentutils.NewStoreOpts{
		ProviderType: c.storageProv,
		DBPath:       sqlitePath,
		DSN:          c.postgresDSN,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	c.logger.Info("using document store", zap.String("provider", c.storageProv))
	return store, nil
}

func (c *ServeCommander) newVectorDriver(ctx context.Context, dataDir string) (vector.Driver, error) {
	target := c.vectorTarget
	if target == "" {
		target = filepath.Join(dataDir, "quarry.sqlite")
	}

	host, port := splitHostPort(target)

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: c.vectorProv,
		DBPath:       target,
		Host:         host,
		Port:         port,
		Dimensions:   c.embeddingDims,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	c.logger.Info("using vector store", zap.String("provider", c.vectorProv))
	return driver, nil
}

// resolveDataDir finds the .quarry directory for local state, falling back
// to ~/.quarry when no directory is found by walking up from the cwd.
func resolveDataDir(configDir string) (string, error) {
	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}
	if target != "" {
		return target, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	target = filepath.Join(home, ".quarry")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return target, nil
}

// splitBrokers parses a comma-separated broker list.
func splitBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// splitHostPort splits a "host:port" vector store target. A target with no
// port (or a filesystem path) comes back as the host with port zero, which
// lets drivers apply their own default.
func splitHostPort(target string) (string, int) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return target, 0
	}
	return host, port
}
