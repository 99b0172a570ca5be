// Package configcmder provides the config command for managing persistent
// quarry configuration stored in the .quarry/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent quarry configuration.

Configuration is stored as config.toml in the .quarry/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  llm.provider, llm.target, llm.model,
  chunking.chunk_size, chunking.chunk_overlap,
  retrieval.top_k, retrieval.max_context_length,
  ingest.inbox_dir, ingest.num_workers,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  quarry config set <key> <value>    Set a configuration value
  quarry config get <key>            Get a configuration value
  quarry config list                 List all configuration values

Examples:
  quarry config set llm.model llama3
  quarry config set embedding.model nomic-embed-text
  quarry config get retrieval.top_k
  quarry config list`

const configShortDesc string = "Manage persistent quarry configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
