// Package quarrycmder
package quarrycmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/quarryhq/quarry/cmd/quarry/config"
	ingestcmder "github.com/quarryhq/quarry/cmd/quarry/ingest"
	querycmder "github.com/quarryhq/quarry/cmd/quarry/query"
	servecmder "github.com/quarryhq/quarry/cmd/quarry/serve"
	versioncmder "github.com/quarryhq/quarry/cmd/version"
)

const quarryLongDesc string = `Quarry is a document question-answering service.

Upload documents, let quarry chunk, embed, and index them, then ask
questions answered from the most relevant passages.

Common commands:
  quarry serve             Run the API server and ingestion pipeline
  quarry ingest <file>     Ingest documents from the command line
  quarry query <question>  Ask a question over the indexed documents
  quarry config list       Show persistent configuration`

const quarryShortDesc string = "Quarry - Document Q&A"

func NewQuarryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: quarryShortDesc,
		Long:  quarryLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing the .quarry config dir (default: walk up from cwd)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
